package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/retrieve"
	"github.com/danieldevos90/brutally-honest-ai/internal/score"
	"github.com/danieldevos90/brutally-honest-ai/internal/validate"
)

// Analyzer runs text through extraction, retrieval, validation and scoring
type Analyzer struct {
	extractor  *extract.ClaimExtractor
	retriever  *retrieve.Retriever
	validator  *validate.Validator
	aggregator *score.Aggregator
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewAnalyzer wires the analysis stages together
func NewAnalyzer(extractor *extract.ClaimExtractor, retriever *retrieve.Retriever, validator *validate.Validator, aggregator *score.Aggregator, log *logger.Logger, m *metrics.Metrics) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{
		extractor:  extractor,
		retriever:  retriever,
		validator:  validator,
		aggregator: aggregator,
		log:        log,
		metrics:    m,
	}
}

// Analyze produces a credibility report for text. progress may be nil.
// Retrieval failing on every source aborts the analysis.
func (a *Analyzer) Analyze(ctx context.Context, jobID, text string, progress func(done, total int)) (*model.CredibilityReport, error) {
	start := time.Now()

	claims := a.extractor.Extract(text)
	a.log.Debug("claims extracted", "job_id", jobID, "claims", len(claims))

	verdicts, err := a.validator.ValidateAll(ctx, claims, a.retriever.Retrieve, progress)
	if err != nil {
		return nil, fmt.Errorf("validate claims: %w", err)
	}

	report := a.aggregator.Aggregate(jobID, verdicts)
	a.log.Info("analysis finished",
		"job_id", jobID,
		"claims", len(claims),
		"questionable", len(report.QuestionableClaims),
		"elapsed", time.Since(start).String(),
	)
	return &report, nil
}

// Check analyzes text synchronously under a fresh report id
func (a *Analyzer) Check(ctx context.Context, text string) (*model.CredibilityReport, error) {
	return a.Analyze(ctx, uuid.NewString(), text, nil)
}
