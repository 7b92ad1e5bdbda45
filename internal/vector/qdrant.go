package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	payloadIDKey      = "_bh_id"
	maxErrorBodyBytes = 1024
)

var pointIDNamespace = uuid.MustParse("6b1f3c2e-8f4a-4d7e-9a0b-3c5d7e9f1a2b")

// QdrantConfig configures the Qdrant HTTP client
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dims       int
	Timeout    time.Duration
}

// QdrantIndex stores chunks in a Qdrant collection over its REST API
type QdrantIndex struct {
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// OperationError describes a failed Qdrant call
type OperationError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("qdrant %s: %s", e.Operation, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewQdrantIndex creates a client; call EnsureCollection before first use
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &QdrantIndex{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EnsureCollection creates the collection with cosine distance when missing
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.StatusCode != http.StatusNotFound {
		return err
	}
	if q.cfg.Dims <= 0 {
		return &OperationError{Operation: op, Message: "vector dimensions required to create collection"}
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     q.cfg.Dims,
			"distance": "Cosine",
		},
	}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), req, nil)
}

// Upsert stores one point; the caller id is kept in the payload
func (q *QdrantIndex) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	const op = "upsert"
	if strings.TrimSpace(id) == "" {
		return &OperationError{Operation: op, Message: "vector id is required"}
	}
	if q.cfg.Dims > 0 && len(embedding) != q.cfg.Dims {
		return &OperationError{
			Operation: op,
			Message:   fmt.Sprintf("vector %q: expected=%d got=%d", id, q.cfg.Dims, len(embedding)),
			Err:       ErrDimensionMismatch,
		}
	}

	payload := cloneMetadata(metadata)
	payload[payloadIDKey] = id
	req := map[string]any{
		"points": []map[string]any{{
			"id":      q.pointID(id),
			"vector":  embedding,
			"payload": payload,
		}},
	}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), req, nil)
}

// Query searches the collection for the topK nearest points
func (q *QdrantIndex) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	const op = "query"
	if len(embedding) == 0 {
		return nil, &OperationError{Operation: op, Message: "query vector required"}
	}
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	var raw []qdrantSearchResultItem
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(raw))
	for _, item := range raw {
		id, _ := item.Payload[payloadIDKey].(string)
		if id == "" {
			id = strings.Trim(string(item.ID), `"`)
		}
		meta := cloneMetadata(item.Payload)
		delete(meta, payloadIDKey)
		matches = append(matches, Match{ID: id, Score: item.Score, Metadata: meta})
	}
	return matches, nil
}

func (q *QdrantIndex) pointID(id string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(q.cfg.Collection+"\x00"+id)).String()
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(q.cfg.Collection) + suffix
}

func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return &OperationError{Operation: op, Message: "encode request failed", Err: err}
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return &OperationError{Operation: op, Message: "build request failed", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return &OperationError{Operation: op, Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &OperationError{Operation: op, Message: "read response failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBodyBytes {
			raw = raw[:maxErrorBodyBytes]
		}
		return &OperationError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, raw),
		}
	}

	if out == nil {
		return nil
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &OperationError{Operation: op, Message: "decode envelope failed", Err: err}
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &OperationError{Operation: op, Message: "decode result failed", Err: err}
	}
	return nil
}
