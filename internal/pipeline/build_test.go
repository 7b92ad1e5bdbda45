package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

func offlineConfig(t *testing.T) model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = ""
	cfg.Cache.Dir = t.TempDir()
	return cfg
}

func TestBuild_Offline(t *testing.T) {
	c, err := Build(context.Background(), offlineConfig(t), nil, nil)
	require.NoError(t, err)

	assert.Nil(t, c.Classifier)
	assert.Equal(t, "hash", c.Embedder.Name())

	_, err = c.Ingester.IngestText(context.Background(), "giraffes.txt", "A giraffe has a long neck and can reach tall trees.")
	require.NoError(t, err)

	report, err := c.Analyzer.Check(context.Background(), "A fish can fly, a giraffe has a long neck")
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 2)
	assert.Equal(t, model.StatusNoData, report.Verdicts[0].Status)
	assert.Equal(t, model.StatusUnverified, report.Verdicts[1].Status)
}

func TestBuild_IngestedDocumentsAreSeenImmediately(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, offlineConfig(t), nil, nil)
	require.NoError(t, err)

	before, err := c.Analyzer.Check(ctx, "A giraffe has a long neck")
	require.NoError(t, err)
	require.Len(t, before.Verdicts, 1)
	assert.Equal(t, model.StatusNoData, before.Verdicts[0].Status)

	_, err = c.Ingester.IngestText(ctx, "giraffes.txt", "A giraffe has a long neck and can reach tall trees.")
	require.NoError(t, err)

	after, err := c.Analyzer.Check(ctx, "A giraffe has a long neck")
	require.NoError(t, err)
	require.Len(t, after.Verdicts, 1)
	assert.Equal(t, model.StatusUnverified, after.Verdicts[0].Status)
	assert.NotEmpty(t, after.Verdicts[0].Evidence)
}

func TestBuild_ClassifierFailureIsNotFatal(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = ""
	t.Setenv("ANTHROPIC_API_KEY", "")

	c, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c.Classifier)
}

func TestBuild_UnknownBackends(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Vector.Backend = "pinecone"
	_, err := Build(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unknown vector backend")

	cfg = offlineConfig(t)
	cfg.Embedding.Provider = "bert"
	_, err = Build(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unknown embedding provider")

	cfg = offlineConfig(t)
	cfg.Profiles.Backend = "mongo"
	_, err = Build(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unknown profiles backend")
}
