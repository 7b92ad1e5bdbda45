package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/transcribe"
	"github.com/danieldevos90/brutally-honest-ai/internal/worker"
)

var (
	// ErrEmptyInput is returned for submissions without text or audio
	ErrEmptyInput = errors.New("empty input: provide text or audio")
	// ErrUnsupportedInput is returned for submissions the pipeline cannot process
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrNotTerminal is returned when an operation needs a finished job
	ErrNotTerminal = errors.New("job is still in progress")
	// ErrMissingOwner is returned when no owner id is supplied
	ErrMissingOwner = errors.New("owner id is required")
)

// Analyzer runs the claim pipeline over a text
type Analyzer interface {
	Analyze(ctx context.Context, jobID, text string, progress func(done, total int)) (*model.CredibilityReport, error)
}

// BlobStore holds uploaded audio
type BlobStore interface {
	Read(ref string) ([]byte, error)
	Delete(ref string) error
}

// SubmitRequest describes a new job
type SubmitRequest struct {
	OwnerID  string
	DeviceID string
	Text     string
	AudioRef string // Reference in the blob store
	Filename string
}

// Config holds orchestrator settings
type Config struct {
	Workers              int
	TranscriptionTimeout time.Duration
}

// Orchestrator queues jobs and drives them through the pipeline phases
type Orchestrator struct {
	store       Store
	analyzer    Analyzer
	transcriber transcribe.Transcriber
	blobs       BlobStore
	pool        *worker.Pool
	log         *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	transcribeTimeout time.Duration
	shutdownOnce      sync.Once
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTranscriber enables audio jobs
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(o *Orchestrator) { o.transcriber = t }
}

// WithBlobStore sets where uploaded audio is read from
func WithBlobStore(b BlobStore) Option {
	return func(o *Orchestrator) { o.blobs = b }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics records job metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator and starts its workers
func New(store Store, analyzer Analyzer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:             store,
		analyzer:          analyzer,
		log:               logger.Nop(),
		now:               time.Now,
		transcribeTimeout: cfg.TranscriptionTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.transcribeTimeout <= 0 {
		o.transcribeTimeout = 5 * time.Minute
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	o.pool = worker.NewPool(workers, worker.WithQueueObserver(o.metrics.SetQueueDepth), worker.WithResultHandler(o.onResult))
	o.pool.Start()
	return o
}

// Submit validates the request, stores a pending job and queues it
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	if req.OwnerID == "" {
		return nil, ErrMissingOwner
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && req.AudioRef == "" {
		return nil, ErrEmptyInput
	}
	if text != "" && req.AudioRef != "" {
		return nil, fmt.Errorf("%w: send either text or audio, not both", ErrUnsupportedInput)
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		DeviceID:  req.DeviceID,
		Kind:      model.JobKindText,
		Filename:  req.Filename,
		Status:    model.JobPending,
		CreatedAt: o.now().UTC(),
		InputText: text,
	}
	if req.AudioRef != "" {
		if o.transcriber == nil || o.blobs == nil {
			return nil, fmt.Errorf("%w: audio transcription is not configured", ErrUnsupportedInput)
		}
		job.Kind = model.JobKindAudio
		job.AudioRef = req.AudioRef
	}
	return o.enqueue(ctx, job)
}

func (o *Orchestrator) enqueue(ctx context.Context, job *model.Job) (*model.Job, error) {
	job.Phase = "Queued"
	if err := o.store.Create(ctx, job); err != nil {
		return nil, err
	}

	pos, err := o.pool.Submit(&poolJob{id: job.ID, o: o})
	if err != nil {
		msg := "cancelled: " + err.Error()
		_, _ = o.store.Update(ctx, job.ID, func(j *model.Job) error { return j.Fail(msg, o.now().UTC()) })
		return nil, err
	}
	o.metrics.EnterPhase("", string(model.JobPending))
	o.log.Info("job queued", "job_id", job.ID, "owner_id", job.OwnerID, "kind", job.Kind, "position", pos)

	updated, err := o.store.Update(ctx, job.ID, func(j *model.Job) error {
		if j.Status != model.JobPending {
			return nil
		}
		j.QueuePosition = pos
		j.Phase = fmt.Sprintf("Queued (position %d)", pos)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o.withPosition(updated), nil
}

// withPosition refreshes the live queue position of a pending job
func (o *Orchestrator) withPosition(job *model.Job) *model.Job {
	if job.Status != model.JobPending {
		job.QueuePosition = 0
		return job
	}
	if pos := o.pool.Position(job.ID); pos > 0 {
		job.QueuePosition = pos
		job.Phase = fmt.Sprintf("Queued (position %d)", pos)
	}
	return job
}

// owned loads a job and hides it from other owners
func (o *Orchestrator) owned(ctx context.Context, owner, id string) (*model.Job, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Get returns one of the owner's jobs
func (o *Orchestrator) Get(ctx context.Context, owner, id string) (*model.Job, error) {
	job, err := o.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return o.withPosition(job), nil
}

// List returns all of the owner's jobs, oldest first
func (o *Orchestrator) List(ctx context.Context, owner string) ([]*model.Job, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	list, err := o.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, j := range list {
		o.withPosition(j)
	}
	return list, nil
}

// Active returns the owner's jobs that have not finished, oldest first
func (o *Orchestrator) Active(ctx context.Context, owner string) ([]*model.Job, error) {
	list, err := o.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	active := make([]*model.Job, 0, len(list))
	for _, j := range list {
		if !j.Status.IsTerminal() {
			active = append(active, j)
		}
	}
	return active, nil
}

// QueueDepth returns the number of jobs waiting for a worker
func (o *Orchestrator) QueueDepth() int {
	return o.pool.Pending()
}

// Summary counts the owner's jobs per status
func (o *Orchestrator) Summary(ctx context.Context, owner string) (model.JobSummary, error) {
	list, err := o.List(ctx, owner)
	if err != nil {
		return model.JobSummary{}, err
	}
	s := model.JobSummary{Total: len(list), ByStatus: make(map[model.JobStatus]int)}
	for _, j := range list {
		s.ByStatus[j.Status]++
		if !j.Status.IsTerminal() {
			s.Active++
		}
	}
	return s, nil
}

// Cancel fails a job that has not finished. A queued job leaves the queue;
// a running job has its context cancelled and any late result is discarded.
func (o *Orchestrator) Cancel(ctx context.Context, owner, id string) (*model.Job, error) {
	job, err := o.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", model.ErrTerminal, id, job.Status)
	}

	reason := "cancelled: stopped by user"
	if o.pool.Remove(id) {
		reason = "cancelled: removed from queue before processing"
	} else {
		o.pool.Cancel(id)
	}

	from := job.Status
	updated, err := o.store.Update(ctx, id, func(j *model.Job) error {
		return j.Fail(reason, o.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	o.metrics.EnterPhase(string(from), string(model.JobFailed))
	o.metrics.RecordJobFinished(string(updated.Kind), "cancelled", o.elapsed(updated))
	o.log.Info("job cancelled", "job_id", id, "previous_status", from)
	return updated, nil
}

// Reanalyze queues a fresh job over the input of a finished one. A stored
// transcript is reused so the audio is not transcribed again.
func (o *Orchestrator) Reanalyze(ctx context.Context, owner, id string) (*model.Job, error) {
	src, err := o.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !src.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotTerminal, id, src.Status)
	}

	job := &model.Job{
		ID:             uuid.NewString(),
		OwnerID:        src.OwnerID,
		DeviceID:       src.DeviceID,
		Kind:           src.Kind,
		Filename:       src.Filename,
		Status:         model.JobPending,
		CreatedAt:      o.now().UTC(),
		InputText:      src.InputText,
		Transcript:     src.Transcript,
		Language:       src.Language,
		ReanalyzedFrom: src.ID,
	}
	if src.Kind == model.JobKindAudio && src.Transcript == "" {
		if src.AudioRef == "" || o.transcriber == nil || o.blobs == nil {
			return nil, fmt.Errorf("%w: no transcript or audio to reanalyze", ErrUnsupportedInput)
		}
		job.AudioRef = src.AudioRef
	}
	return o.enqueue(ctx, job)
}

// Delete removes a finished job and its audio
func (o *Orchestrator) Delete(ctx context.Context, owner, id string) error {
	job, err := o.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, id, job.Status)
	}
	return o.remove(ctx, job)
}

func (o *Orchestrator) remove(ctx context.Context, job *model.Job) error {
	if err := o.store.Delete(ctx, job.ID); err != nil {
		return err
	}
	if job.AudioRef != "" && o.blobs != nil && !o.audioShared(ctx, job) {
		if err := o.blobs.Delete(job.AudioRef); err != nil {
			o.log.Warn("failed to delete audio", "job_id", job.ID, "audio_ref", job.AudioRef, "error", err)
		}
	}
	return nil
}

// audioShared reports whether another job of the owner still uses the audio blob
func (o *Orchestrator) audioShared(ctx context.Context, job *model.Job) bool {
	list, err := o.store.ListByOwner(ctx, job.OwnerID)
	if err != nil {
		return true
	}
	for _, j := range list {
		if j.ID != job.ID && j.AudioRef == job.AudioRef {
			return true
		}
	}
	return false
}

// Cleanup deletes finished jobs older than maxAge and returns how many were removed
func (o *Orchestrator) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	list, err := o.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := o.now().Add(-maxAge)
	removed := 0
	for _, j := range list {
		if !j.Status.IsTerminal() {
			continue
		}
		finished := j.CreatedAt
		if j.CompletedAt != nil {
			finished = *j.CompletedAt
		}
		if finished.After(cutoff) {
			continue
		}
		if err := o.remove(ctx, j); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		o.log.Info("cleaned up old jobs", "removed", removed, "max_age", maxAge.String())
	}
	return removed, nil
}

// Shutdown stops the workers. Queued and running jobs fail as interrupted.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.shutdownOnce.Do(func() {
		done := make(chan []string, 1)
		go func() { done <- o.pool.Shutdown() }()

		select {
		case dropped := <-done:
			for _, id := range dropped {
				_, _ = o.store.Update(context.WithoutCancel(ctx), id, func(j *model.Job) error {
					return j.Fail("cancelled: server shutting down", o.now().UTC())
				})
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (o *Orchestrator) elapsed(job *model.Job) time.Duration {
	start := job.CreatedAt
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	end := o.now()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return end.Sub(start)
}

// poolJob adapts one stored job to the worker pool
type poolJob struct {
	id string
	o  *Orchestrator
}

func (p *poolJob) Key() string { return p.id }

func (p *poolJob) Execute(ctx context.Context) worker.Result {
	return jobResult{id: p.id, err: p.o.run(ctx, p.id)}
}

type jobResult struct {
	id  string
	err error
}

func (r jobResult) GetError() error { return r.err }

func (o *Orchestrator) onResult(_ worker.Job, result worker.Result) {
	r, ok := result.(jobResult)
	if !ok {
		return
	}
	o.log.Debug("worker finished job", "job_id", r.id, "error", r.err)
}
