package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/danieldevos90/brutally-honest-ai/internal/embed"
	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/vector"
)

// ErrEmptyDocument is returned when a document has no extractable text
var ErrEmptyDocument = errors.New("document contains no text")

var documentNamespace = uuid.MustParse("0f6e4c1a-2b7d-4f3e-8c9a-5d1b2e3f4a6c")

// embedBatchSize bounds texts per embedding request
const embedBatchSize = 64

// IngestResult describes a stored document
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
}

// Ingester adds documents to the knowledge base
type Ingester struct {
	embedder  embed.Embedder
	index     vector.Index
	extractor *extract.TextExtractor
	fetcher   *Fetcher
	chunkSize int
	overlap   int
	log       *logger.Logger
}

// NewIngester creates an ingester; fetcher may be nil when URLs are not ingested
func NewIngester(embedder embed.Embedder, index vector.Index, fetcher *Fetcher, chunkSize, overlap int, log *logger.Logger) *Ingester {
	if log == nil {
		log = logger.Nop()
	}
	return &Ingester{
		embedder:  embedder,
		index:     index,
		extractor: extract.NewTextExtractor(),
		fetcher:   fetcher,
		chunkSize: chunkSize,
		overlap:   overlap,
		log:       log,
	}
}

// IngestDocument extracts text from an uploaded document and indexes it
func (i *Ingester) IngestDocument(ctx context.Context, filename string, data []byte, mimeType string) (*IngestResult, error) {
	if mimeType == "" {
		mimeType = mimeFromName(filename)
	}
	text, err := i.extractor.ExtractText(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return i.IngestText(ctx, filename, text)
}

// IngestText chunks, embeds and upserts text. Re-ingesting the same filename
// overwrites its chunks.
func (i *Ingester) IngestText(ctx context.Context, filename, text string) (*IngestResult, error) {
	chunks := vector.Chunk(text, i.chunkSize, i.overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	docID := uuid.NewSHA1(documentNamespace, []byte(filename)).String()
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		vectors, err := i.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		for k, vec := range vectors {
			idx := start + k
			metadata := map[string]any{
				vector.MetaDocumentID: docID,
				vector.MetaChunkIndex: idx,
				vector.MetaFilename:   filename,
				vector.MetaContent:    chunks[idx],
			}
			if err := i.index.Upsert(ctx, fmt.Sprintf("%s#%d", docID, idx), vec, metadata); err != nil {
				return nil, fmt.Errorf("upsert chunk %d: %w", idx, err)
			}
		}
	}

	i.log.Info("document ingested", "document_id", docID, "filename", filename, "chunks", len(chunks))
	return &IngestResult{DocumentID: docID, Filename: filename, Chunks: len(chunks)}, nil
}

// IngestURL fetches a web page or text file and indexes it
func (i *Ingester) IngestURL(ctx context.Context, rawURL string) (*IngestResult, error) {
	if i.fetcher == nil {
		return nil, errors.New("url ingestion is not configured")
	}
	result, err := i.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	text, err := i.extractor.ExtractText(result.Body, result.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	return i.IngestText(ctx, result.FinalURL, text)
}

func mimeFromName(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".html", ".htm":
		return "text/html"
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	}
	return ""
}
