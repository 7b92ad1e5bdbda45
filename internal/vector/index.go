package vector

import (
	"context"
	"errors"
)

// Metadata keys written by document ingestion
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaFilename   = "filename"
	MetaContent    = "content"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimensionality
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index is a vector similarity index over embedded document chunks
type Index interface {
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)
}

// Match is one nearest-neighbour result; Score is cosine similarity
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Content returns the chunk text stored in the match payload
func (m Match) Content() string {
	s, _ := m.Metadata[MetaContent].(string)
	return s
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
