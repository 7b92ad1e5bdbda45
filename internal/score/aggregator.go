package score

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// Aggregator folds claim verdicts into a credibility report
type Aggregator struct {
	weights     map[model.VerdictStatus]float64
	priorWeight float64
	priorScore  float64
	now         func() time.Time
}

// NewAggregator creates an aggregator from the scoring config
func NewAggregator(cfg model.AggregateConfig) *Aggregator {
	return &Aggregator{
		weights: map[model.VerdictStatus]float64{
			model.StatusVerified:   cfg.VerifiedWeight,
			model.StatusNuanced:    cfg.NuancedWeight,
			model.StatusIncorrect:  cfg.IncorrectWeight,
			model.StatusUnverified: cfg.UnverifiedWeight,
		},
		priorWeight: max(cfg.PriorWeight, 0),
		priorScore:  model.ClampScore(cfg.PriorScore),
		now:         time.Now,
	}
}

// Aggregate builds the report for one job. Verdict order is preserved.
func (a *Aggregator) Aggregate(jobID string, verdicts []model.ClaimVerdict) model.CredibilityReport {
	if verdicts == nil {
		verdicts = []model.ClaimVerdict{}
	}

	report := model.CredibilityReport{
		JobID:              jobID,
		OverallScore:       a.Score(verdicts),
		Verdicts:           verdicts,
		QuestionableClaims: questionable(verdicts),
		GeneratedAt:        a.now().UTC(),
	}
	report.Summary = summarize(&report)
	report.Warnings = warnings(verdicts)
	return report
}

// Score returns the prior-smoothed, confidence-weighted mean of the verdict
// weights, or nil when no verdict carries a judgement
func (a *Aggregator) Score(verdicts []model.ClaimVerdict) *float64 {
	var weighted, confidence, plain float64
	counted := 0
	for _, v := range verdicts {
		w, ok := a.weights[v.Status]
		if !ok {
			continue // NO_DATA
		}
		c := model.ClampScore(v.Confidence)
		weighted += c * w
		confidence += c
		plain += w
		counted++
	}
	if counted == 0 {
		return nil
	}

	var score float64
	if denom := confidence + a.priorWeight; denom > 0 {
		score = (weighted + a.priorWeight*a.priorScore) / denom
	} else {
		// Every verdict had zero confidence and there is no prior
		score = plain / float64(counted)
	}
	score = model.ClampScore(score)
	return &score
}

// questionable returns INCORRECT and NUANCED verdicts, least confident first
func questionable(verdicts []model.ClaimVerdict) []model.ClaimVerdict {
	out := make([]model.ClaimVerdict, 0)
	for _, v := range verdicts {
		if v.Status.Questionable() {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence < out[j].Confidence
	})
	return out
}

var summaryOrder = []struct {
	status model.VerdictStatus
	label  string
}{
	{model.StatusVerified, "verified"},
	{model.StatusIncorrect, "incorrect"},
	{model.StatusNuanced, "nuanced"},
	{model.StatusUnverified, "unverified"},
	{model.StatusNoData, "without data"},
}

func summarize(r *model.CredibilityReport) string {
	if len(r.Verdicts) == 0 {
		return "No checkable claims were found."
	}

	counts := r.StatusCounts()
	parts := make([]string, 0, len(summaryOrder))
	for _, s := range summaryOrder {
		if n := counts[s.status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s.label))
		}
	}

	summary := fmt.Sprintf("Validated %d claim(s): %s.", len(r.Verdicts), strings.Join(parts, ", "))
	if r.OverallScore == nil {
		summary += " No claim could be checked against the knowledge base."
	} else {
		summary += fmt.Sprintf(" Credibility %.0f%%.", *r.OverallScore*100)
	}
	return summary
}

func warnings(verdicts []model.ClaimVerdict) []string {
	var out []string
	fallbacks := 0
	for _, v := range verdicts {
		if v.Status == model.StatusIncorrect {
			out = append(out, fmt.Sprintf("Claim %q is contradicted by the evidence", v.Claim.Text))
		}
		if v.Fallback {
			fallbacks++
		}
	}
	if fallbacks > 0 {
		out = append(out, fmt.Sprintf("Analysis was incomplete for %d claim(s); the classifier did not answer", fallbacks))
	}
	return out
}
