package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danieldevos90/brutally-honest-ai/internal/embed"
)

// MemoryIndex is a brute-force cosine index held in process memory
type MemoryIndex struct {
	mu      sync.RWMutex
	dims    int
	entries map[string]memoryEntry
}

type memoryEntry struct {
	vector   []float32
	metadata map[string]any
}

// NewMemoryIndex creates an empty index; dims 0 accepts the first vector's size
func NewMemoryIndex(dims int) *MemoryIndex {
	return &MemoryIndex{dims: dims, entries: make(map[string]memoryEntry)}
}

// Upsert stores or replaces a vector
func (m *MemoryIndex) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return fmt.Errorf("vector id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("vector %q has empty values", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dims == 0 {
		m.dims = len(embedding)
	}
	if len(embedding) != m.dims {
		return fmt.Errorf("%w: expected=%d got=%d", ErrDimensionMismatch, m.dims, len(embedding))
	}
	m.entries[id] = memoryEntry{
		vector:   append([]float32(nil), embedding...),
		metadata: cloneMetadata(metadata),
	}
	return nil
}

// Query returns the topK most similar vectors, best first
func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dims != 0 && len(embedding) != m.dims {
		return nil, fmt.Errorf("%w: expected=%d got=%d", ErrDimensionMismatch, m.dims, len(embedding))
	}

	matches := make([]Match, 0, len(m.entries))
	for id, e := range m.entries {
		matches = append(matches, Match{
			ID:       id,
			Score:    embed.Cosine(embedding, e.vector),
			Metadata: cloneMetadata(e.metadata),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored vectors
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
