package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieldevos90/brutally-honest-ai/internal/embed"
	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/llm"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/profile"
	"github.com/danieldevos90/brutally-honest-ai/internal/retrieve"
	"github.com/danieldevos90/brutally-honest-ai/internal/score"
	"github.com/danieldevos90/brutally-honest-ai/internal/validate"
	"github.com/danieldevos90/brutally-honest-ai/internal/vector"
)

// stubClassifier refutes claims about fish and verifies everything else
type stubClassifier struct {
	mu      sync.Mutex
	prompts []string
}

func (s *stubClassifier) Name() string { return "stub" }
func (s *stubClassifier) IsAvailable(ctx context.Context) bool { return true }

func (s *stubClassifier) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()
	if strings.Contains(strings.ToLower(req.Prompt), "fish") {
		return &llm.CompletionResponse{
			Text:  `{"status":"INCORRECT","confidence":0.8,"explanation":"The document states fish cannot fly or talk.","stances":[{"evidence":1,"stance":"contradicts"}]}`,
			Model: "stub",
		}, nil
	}
	return &llm.CompletionResponse{
		Text:  `{"status":"VERIFIED","confidence":0.9,"explanation":"The document states giraffes have long necks.","stances":[{"evidence":1,"stance":"supports"}]}`,
		Model: "stub",
	}, nil
}

func (s *stubClassifier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type failingSource struct{ name string }

func (f failingSource) Name() string           { return f.name }
func (f failingSource) Kind() model.SourceType { return model.SourceDocument }
func (f failingSource) Find(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error) {
	return nil, errors.New("backend unavailable")
}

func newTestAnalyzer(t *testing.T, classifier llm.Provider, docs map[string]string) *Analyzer {
	t.Helper()
	embedder := embed.NewHashEmbedder(384)
	index := vector.NewMemoryIndex(384)
	ingester := NewIngester(embedder, index, nil, 500, 50, nil)
	for name, text := range docs {
		_, err := ingester.IngestText(context.Background(), name, text)
		require.NoError(t, err)
	}

	retriever := retrieve.New([]retrieve.Source{
		retrieve.NewDocumentSource(embedder, index, 5, 0.35),
		retrieve.NewProfileSource(profile.NewMemoryStore()),
	})
	return NewAnalyzer(
		extract.NewClaimExtractor(3),
		retriever,
		validate.New(classifier, validate.WithConcurrency(2)),
		score.NewAggregator(model.DefaultConfig().Aggregate),
		nil,
		nil,
	)
}

func TestAnalyzer_GiraffeScenario(t *testing.T) {
	classifier := &stubClassifier{}
	a := newTestAnalyzer(t, classifier, map[string]string{
		"giraffes.txt": "A giraffe has a long neck and can reach tall trees.",
	})

	var mu sync.Mutex
	var seen []int
	report, err := a.Analyze(context.Background(), "job-1", "A fish can fly, a fish can talk, a giraffe has a long neck", func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	})
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 3)
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, model.StatusNoData, report.Verdicts[0].Status)
	assert.Equal(t, model.StatusNoData, report.Verdicts[1].Status)
	assert.Equal(t, model.StatusVerified, report.Verdicts[2].Status)
	assert.Equal(t, "a giraffe has a long neck", report.Verdicts[2].Claim.Text)
	assert.NotEmpty(t, report.Verdicts[2].Evidence)

	// Only the claim with evidence reaches the classifier
	assert.Equal(t, 1, classifier.calls())

	// Nothing contradicts the statement, so the only judged claim decides the score
	require.NotNil(t, report.OverallScore)
	assert.InDelta(t, 1.0, *report.OverallScore, 1e-9)
	assert.Empty(t, report.QuestionableClaims)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestAnalyzer_GiraffeScenarioWithGeneralKnowledge(t *testing.T) {
	classifier := &stubClassifier{}
	a := newTestAnalyzer(t, classifier, map[string]string{
		"giraffes.txt": "A giraffe has a long neck and can reach tall trees.",
		"fish.txt":     "Fish cannot fly or talk.",
	})

	report, err := a.Analyze(context.Background(), "job-1", "A fish can fly, a fish can talk, a giraffe has a long neck", nil)
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 3)
	assert.Equal(t, model.StatusIncorrect, report.Verdicts[0].Status)
	assert.Equal(t, model.StatusIncorrect, report.Verdicts[1].Status)
	assert.Equal(t, model.StatusVerified, report.Verdicts[2].Status)
	assert.Equal(t, 3, classifier.calls())

	require.NotNil(t, report.OverallScore)
	assert.Less(t, *report.OverallScore, 1.0)
	assert.Len(t, report.QuestionableClaims, 2)
}

func TestAnalyzer_EmptyKnowledgeBase(t *testing.T) {
	classifier := &stubClassifier{}
	a := newTestAnalyzer(t, classifier, nil)

	report, err := a.Analyze(context.Background(), "job-2", "The moon is made of cheese", nil)
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, model.StatusNoData, report.Verdicts[0].Status)
	assert.Nil(t, report.OverallScore)
	assert.Zero(t, classifier.calls())
}

func TestAnalyzer_EmptyText(t *testing.T) {
	a := newTestAnalyzer(t, &stubClassifier{}, nil)

	report, err := a.Check(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, report.Verdicts)
	assert.Nil(t, report.OverallScore)
	assert.NotEmpty(t, report.JobID)
}

func TestAnalyzer_AllSourcesFailed(t *testing.T) {
	a := NewAnalyzer(
		extract.NewClaimExtractor(3),
		retrieve.New([]retrieve.Source{failingSource{"documents"}, failingSource{"profiles"}}),
		validate.New(&stubClassifier{}),
		score.NewAggregator(model.DefaultConfig().Aggregate),
		nil,
		nil,
	)

	_, err := a.Analyze(context.Background(), "job-3", "A giraffe has a long neck", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieve.ErrAllSourcesFailed)
	assert.True(t, strings.HasPrefix(err.Error(), "validate claims:"))
}

func TestAnalyzer_NoClassifierFallsBack(t *testing.T) {
	a := newTestAnalyzer(t, nil, map[string]string{
		"giraffes.txt": "A giraffe has a long neck and can reach tall trees.",
	})

	report, err := a.Check(context.Background(), "A giraffe has a long neck")
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, model.StatusUnverified, report.Verdicts[0].Status)
	assert.True(t, report.Verdicts[0].Fallback)
}
