package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// entry guards one job; updates to different jobs never share a lock
type entry struct {
	mu      sync.Mutex
	job     *model.Job
	deleted bool
}

// MemoryStore keeps jobs in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*entry)}
}

func (s *MemoryStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	return e, ok
}

// Create stores a copy of job
func (s *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, job.ID)
	}
	s.jobs[job.ID] = &entry{job: job.Clone()}
	return nil
}

// Get returns a copy of the job
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.job.Clone(), nil
}

// Update runs fn on a copy under the job's own lock and commits it on success
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := e.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.job = next
	return next.Clone(), nil
}

// ListByOwner returns copies of the owner's jobs, oldest first
func (s *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]*model.Job, error) {
	return s.list(func(j *model.Job) bool { return j.OwnerID == owner }), nil
}

// ListAll returns copies of all jobs, oldest first
func (s *MemoryStore) ListAll(ctx context.Context) ([]*model.Job, error) {
	return s.list(func(*model.Job) bool { return true }), nil
}

func (s *MemoryStore) list(keep func(*model.Job) bool) []*model.Job {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*model.Job, 0)
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && keep(e.job) {
			out = append(out, e.job.Clone())
		}
		e.mu.Unlock()
	}
	sortByCreated(out)
	return out
}

// Delete removes the job
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}
