package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// ErrAllSourcesFailed is returned when no evidence source could be queried
var ErrAllSourcesFailed = errors.New("all evidence sources failed")

// sleepFunc waits between attempts (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retriever gathers evidence for claims from several sources in parallel.
// Evidence is fetched fresh on every call.
type Retriever struct {
	sources    []Source
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// Option configures a Retriever
type Option func(*Retriever)

// WithTimeout bounds each source call
func WithTimeout(d time.Duration) Option {
	return func(r *Retriever) { r.timeout = d }
}

// WithRetry retries a failing source up to maxRetries times, doubling
// backoff after each attempt
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(r *Retriever) {
		r.maxRetries = max(maxRetries, 0)
		r.backoff = backoff
	}
}

// WithLogger sets the logger for source failures
func WithLogger(l *logger.Logger) Option {
	return func(r *Retriever) { r.log = l }
}

// WithMetrics counts source failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// New creates a retriever over the given sources
func New(sources []Source, opts ...Option) *Retriever {
	r := &Retriever{
		sources:    sources,
		timeout:    10 * time.Second,
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type sourceResult struct {
	items []model.EvidenceItem
	err   error
}

// Retrieve returns evidence sorted by relevance, profile facts first on ties.
// A source is retried before it counts as failed; a failed source is
// skipped and the call fails only when every source fails.
func (r *Retriever) Retrieve(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error) {
	results := make([]sourceResult, len(r.sources))
	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			items, err := r.find(ctx, src, claim)
			results[i] = sourceResult{items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error
	var items []model.EvidenceItem
	for i, res := range results {
		src := r.sources[i]
		if res.err != nil {
			r.log.Warn("evidence source failed", "source", src.Name(), "claim_id", claim.ID, "error", res.err)
			r.metrics.RecordRetrievalFailure(src.Name())
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), res.err))
			continue
		}
		items = append(items, res.items...)
	}
	if len(r.sources) > 0 && len(errs) == len(r.sources) {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	return Merge(items), nil
}

// find queries one source, each attempt bounded by the source timeout
func (r *Retriever) find(ctx context.Context, src Source, claim model.Claim) ([]model.EvidenceItem, error) {
	var lastErr error
	wait := r.backoff
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.log.Debug("retrying evidence source", "source", src.Name(), "attempt", attempt, "error", lastErr)
			if err := sleepFunc(ctx, wait); err != nil {
				return nil, lastErr
			}
			wait *= 2
		}

		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		items, err := src.Find(sctx, claim)
		cancel()
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Merge orders evidence by relevance descending; ties go to the higher
// precedence source, then to input order
func Merge(items []model.EvidenceItem) []model.EvidenceItem {
	out := make([]model.EvidenceItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].SourceType.Precedence() < out[j].SourceType.Precedence()
	})
	return out
}
