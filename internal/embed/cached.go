package embed

import (
	"context"
	"time"

	"github.com/danieldevos90/brutally-honest-ai/internal/cache"
)

// CachedEmbedder memoizes vectors per (model, text)
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps next with a cache
func NewCachedEmbedder(next Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, ttl: ttl}
}

// Name returns the wrapped embedder name
func (e *CachedEmbedder) Name() string {
	return e.next.Name()
}

// Embed serves hits from the cache and embeds the misses in one batch
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		var vec []float32
		if cache.GetJSON(e.cache, e.key(t), &vec) && len(vec) > 0 {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		_ = cache.SetJSON(e.cache, e.key(texts[i]), vecs[j], e.ttl)
	}
	return out, nil
}

func (e *CachedEmbedder) key(text string) string {
	return cache.Key("embed", e.next.Name(), text)
}
