package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when submitting to a pool that is draining or shut down
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrDuplicateKey is returned when a job with the same key is already queued or running
var ErrDuplicateKey = errors.New("job key already queued")

// Job represents a unit of work to be executed
type Job interface {
	// Key identifies the job for Position, Remove and Cancel
	Key() string

	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers in strict FIFO order.
// The pending queue is unbounded; each worker runs one job at a time.
type Pool struct {
	workers int
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	queued  map[string]bool
	running map[string]context.CancelFunc
	closed  bool
	started bool

	onResult func(Job, Result)
	onDepth  func(int)
	results  *ResultCollector
}

// Option configures a Pool
type Option func(*Pool)

// WithContext derives job contexts from ctx instead of context.Background
func WithContext(ctx context.Context) Option {
	return func(p *Pool) { p.parent = ctx }
}

// WithResultHandler receives every result as soon as its job finishes.
// Results passed to the handler are not collected for Wait.
func WithResultHandler(fn func(Job, Result)) Option {
	return func(p *Pool) { p.onResult = fn }
}

// WithQueueObserver is called with the pending queue length whenever it changes
func WithQueueObserver(fn func(depth int)) Option {
	return func(p *Pool) { p.onDepth = fn }
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		workers: workers,
		parent:  context.Background(),
		queued:  make(map[string]bool),
		running: make(map[string]context.CancelFunc),
		results: NewResultCollector(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cond = sync.NewCond(&p.mu)
	p.ctx, p.cancel = context.WithCancel(p.parent)
	return p
}

// Start starts the worker goroutines; calling it twice is a no-op
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	// Wake workers when the parent context ends
	go func() {
		<-p.ctx.Done()
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	}()
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed && p.ctx.Err() == nil {
			p.cond.Wait()
		}
		if p.ctx.Err() != nil || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		key := job.Key()
		delete(p.queued, key)
		jobCtx, cancel := context.WithCancel(p.ctx)
		p.running[key] = cancel
		p.notifyDepth()
		p.mu.Unlock()

		result := job.Execute(jobCtx)

		p.mu.Lock()
		delete(p.running, key)
		p.mu.Unlock()
		cancel()

		if p.onResult != nil {
			p.onResult(job, result)
		} else {
			p.results.Add(result)
		}
	}
}

// Submit appends a job to the queue and returns its 1-based position
func (p *Pool) Submit(job Job) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.ctx.Err() != nil {
		return 0, ErrPoolClosed
	}
	key := job.Key()
	if p.queued[key] || p.running[key] != nil {
		return 0, ErrDuplicateKey
	}
	p.queue = append(p.queue, job)
	p.queued[key] = true
	p.notifyDepth()
	p.cond.Signal()
	return len(p.queue), nil
}

// Position returns the 1-based queue position of a pending job, or 0 if it is not pending
func (p *Pool) Position(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.queued[key] {
		return 0
	}
	for i, job := range p.queue {
		if job.Key() == key {
			return i + 1
		}
	}
	return 0
}

// Remove drops a pending job from the queue; it reports false if the job is not pending
func (p *Pool) Remove(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.queued[key] {
		return false
	}
	for i, job := range p.queue {
		if job.Key() == key {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			delete(p.queued, key)
			p.notifyDepth()
			return true
		}
	}
	return false
}

// Cancel cancels the context of a running job; it reports false if the job is not running
func (p *Pool) Cancel(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel, ok := p.running[key]
	if ok {
		cancel()
	}
	return ok
}

// Pending returns the number of queued jobs
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Running returns the number of jobs being executed
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Wait stops accepting jobs, lets the workers drain the queue and returns
// the collected results
func (p *Pool) Wait() []Result {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	return p.results.Results()
}

// Shutdown cancels running jobs, drops pending ones and waits for workers to exit.
// It returns the keys of jobs that were still queued.
func (p *Pool) Shutdown() []string {
	p.mu.Lock()
	p.closed = true
	dropped := make([]string, 0, len(p.queue))
	for _, job := range p.queue {
		dropped = append(dropped, job.Key())
	}
	p.queue = nil
	p.queued = make(map[string]bool)
	p.notifyDepth()
	p.mu.Unlock()

	p.cancel()
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	return dropped
}

// notifyDepth must be called with p.mu held
func (p *Pool) notifyDepth() {
	if p.onDepth != nil {
		p.onDepth(len(p.queue))
	}
}

// ResultCollector provides a safer way to collect results as they arrive
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of all collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}
