package validate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danieldevos90/brutally-honest-ai/internal/llm"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/worker"
)

// ErrNoClassifier is the fallback cause when no LLM provider is configured
var ErrNoClassifier = errors.New("no classifier configured")

const noEvidenceExplanation = "No evidence was found in the knowledge base for this claim."

// RetrieveFunc fetches evidence for one claim
type RetrieveFunc func(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error)

// ProgressFunc is called after each claim is validated
type ProgressFunc func(done, total int)

// Validator classifies claims against retrieved evidence with an LLM
type Validator struct {
	classifier  llm.Provider
	policy      RetryPolicy
	limiter     *worker.Limiter
	timeout     time.Duration
	concurrency int
	maxTokens   int
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// Option configures a Validator
type Option func(*Validator)

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithLimiter rate limits classifier calls per provider
func WithLimiter(l *worker.Limiter) Option {
	return func(v *Validator) { v.limiter = l }
}

// WithTimeout bounds each classifier attempt
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

// WithConcurrency bounds parallel claims in ValidateAll
func WithConcurrency(n int) Option {
	return func(v *Validator) { v.concurrency = n }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// WithMetrics records classifier outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithMaxTokens caps the classifier reply length
func WithMaxTokens(n int) Option {
	return func(v *Validator) { v.maxTokens = n }
}

// New creates a validator; classifier may be nil, in which case claims with
// evidence fall back to UNVERIFIED
func New(classifier llm.Provider, opts ...Option) *Validator {
	v := &Validator{
		classifier:  classifier,
		policy:      DefaultRetryPolicy(),
		timeout:     30 * time.Second,
		concurrency: 3,
		maxTokens:   400,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.concurrency <= 0 {
		v.concurrency = 1
	}
	return v
}

// Validate classifies one claim. It never fails: empty evidence yields
// NO_DATA without a classifier call, and classifier failures yield the
// retry policy's fallback verdict.
func (v *Validator) Validate(ctx context.Context, claim model.Claim, evidence []model.EvidenceItem) model.ClaimVerdict {
	if evidence == nil {
		evidence = []model.EvidenceItem{}
	}
	if len(evidence) == 0 {
		verdict := model.ClaimVerdict{
			ClaimID:     claim.ID,
			Claim:       claim,
			Status:      model.StatusNoData,
			Confidence:  0,
			Explanation: noEvidenceExplanation,
			Evidence:    evidence,
		}
		v.metrics.RecordVerdict(string(verdict.Status))
		return verdict
	}

	if v.classifier == nil {
		verdict := v.fallback(claim, ErrNoClassifier)
		verdict.Evidence = evidence
		v.metrics.RecordVerdict(string(verdict.Status))
		return verdict
	}

	provider := v.classifier.Name()
	policy := v.policy
	policy.OnRetry = func(attempt int, err error) {
		v.log.Warn("classifier attempt failed, retrying", "claim_id", claim.ID, "provider", provider, "attempt", attempt, "error", err)
	}

	verdict, err := policy.Run(ctx, claim, func(ctx context.Context) (model.ClaimVerdict, error) {
		return v.classify(ctx, claim, evidence)
	})
	if err != nil {
		v.log.Error("classifier gave up", "claim_id", claim.ID, "provider", provider, "error", err)
		v.metrics.RecordClassifierCall(provider, "fallback")
	}
	verdict.Evidence = evidence
	v.metrics.RecordVerdict(string(verdict.Status))
	return verdict
}

func (v *Validator) fallback(claim model.Claim, err error) model.ClaimVerdict {
	if v.policy.Fallback != nil {
		return v.policy.Fallback(claim, err)
	}
	return UnverifiedFallback(claim, err)
}

// classify performs one rate-limited, time-bounded classifier attempt
func (v *Validator) classify(ctx context.Context, claim model.Claim, evidence []model.EvidenceItem) (model.ClaimVerdict, error) {
	provider := v.classifier.Name()
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, provider); err != nil {
			return model.ClaimVerdict{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.classifier.Complete(callCtx, llm.CompletionRequest{
		System:    systemPrompt,
		Prompt:    buildPrompt(claim, evidence),
		MaxTokens: v.maxTokens,
		JSON:      true,
	})
	if err != nil {
		v.metrics.RecordClassifierCall(provider, "error")
		return model.ClaimVerdict{}, err
	}

	c, err := parseReply(resp.Text, len(evidence))
	if err != nil {
		v.metrics.RecordClassifierCall(provider, "malformed")
		return model.ClaimVerdict{}, err
	}
	v.metrics.RecordClassifierCall(provider, "success")

	return model.ClaimVerdict{
		ClaimID:     claim.ID,
		Claim:       claim,
		Status:      c.status,
		Confidence:  c.confidence,
		Explanation: c.explanation,
	}, nil
}

// ValidateAll retrieves evidence for and validates every claim with bounded
// concurrency. Verdicts keep claim order. A retrieval error aborts the run.
func (v *Validator) ValidateAll(ctx context.Context, claims []model.Claim, retrieve RetrieveFunc, progress ProgressFunc) ([]model.ClaimVerdict, error) {
	verdicts := make([]model.ClaimVerdict, len(claims))
	if len(claims) == 0 {
		return verdicts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	var done atomic.Int32
	for i, claim := range claims {
		i, claim := i, claim
		g.Go(func() error {
			evidence, err := retrieve(gctx, claim)
			if err != nil {
				return fmt.Errorf("retrieve evidence for %s: %w", claim.ID, err)
			}
			verdicts[i] = v.Validate(gctx, claim, evidence)
			if progress != nil {
				progress(int(done.Add(1)), len(claims))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}
