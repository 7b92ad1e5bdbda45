// Package jobs tracks credibility jobs from submission to report.
package jobs

import (
	"context"
	"errors"
	"sort"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// ErrNotFound is returned for unknown job ids
var ErrNotFound = errors.New("job not found")

// ErrExists is returned when creating a job whose id is taken
var ErrExists = errors.New("job already exists")

// Store persists jobs. Implementations are safe for concurrent use and hand
// out copies, never their internal records.
type Store interface {
	// Create stores a new job
	Create(ctx context.Context, job *model.Job) error

	// Get returns a copy of the job
	Get(ctx context.Context, id string) (*model.Job, error)

	// Update applies fn to the job atomically. If fn returns an error
	// nothing is written. The updated job is returned.
	Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error)

	// ListByOwner returns the owner's jobs, oldest first
	ListByOwner(ctx context.Context, owner string) ([]*model.Job, error)

	// ListAll returns every job, oldest first
	ListAll(ctx context.Context) ([]*model.Job, error)

	// Delete removes the job
	Delete(ctx context.Context, id string) error
}

func sortByCreated(list []*model.Job) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
