package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/embed"
	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/profile"
	"github.com/danieldevos90/brutally-honest-ai/internal/vector"
)

// Source finds evidence for a claim in one knowledge base
type Source interface {
	Name() string
	Kind() model.SourceType
	Find(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error)
}

// DocumentSource searches ingested document chunks by embedding similarity
type DocumentSource struct {
	embedder embed.Embedder
	index    vector.Index
	topK     int
	minScore float64
}

// NewDocumentSource creates a vector-similarity evidence source
func NewDocumentSource(embedder embed.Embedder, index vector.Index, topK int, minScore float64) *DocumentSource {
	if topK <= 0 {
		topK = 5
	}
	return &DocumentSource{embedder: embedder, index: index, topK: topK, minScore: minScore}
}

func (s *DocumentSource) Name() string           { return "documents" }
func (s *DocumentSource) Kind() model.SourceType { return model.SourceDocument }

// Find returns up to topK chunks scoring at least minScore
func (s *DocumentSource) Find(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error) {
	vectors, err := s.embedder.Embed(ctx, []string{claim.Text})
	if err != nil {
		return nil, fmt.Errorf("embed claim: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed claim: expected 1 vector, got %d", len(vectors))
	}
	matches, err := s.index.Query(ctx, vectors[0], s.topK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	items := make([]model.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.minScore {
			continue
		}
		content := m.Content()
		if strings.TrimSpace(content) == "" {
			continue
		}
		items = append(items, model.EvidenceItem{
			SourceType:     model.SourceDocument,
			SourceID:       chunkSourceID(m),
			Excerpt:        content,
			RelevanceScore: model.ClampScore(m.Score),
		})
	}
	return items, nil
}

func chunkSourceID(m vector.Match) string {
	docID, _ := m.Metadata[vector.MetaDocumentID].(string)
	if docID == "" {
		return m.ID
	}
	switch idx := m.Metadata[vector.MetaChunkIndex].(type) {
	case int:
		return fmt.Sprintf("%s#%d", docID, idx)
	case float64: // decoded JSON payloads
		return fmt.Sprintf("%s#%d", docID, int(idx))
	default:
		return docID
	}
}

// ProfileSource looks up structured facts about entities mentioned in a claim
type ProfileSource struct {
	store    profile.Store
	maxNgram int
}

// NewProfileSource creates a profile-fact evidence source
func NewProfileSource(store profile.Store) *ProfileSource {
	return &ProfileSource{store: store, maxNgram: 4}
}

func (s *ProfileSource) Name() string           { return "profiles" }
func (s *ProfileSource) Kind() model.SourceType { return model.SourceProfileFact }

// Find queries the store for every candidate mention and keeps the best match per fact
func (s *ProfileSource) Find(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error) {
	var items []model.EvidenceItem
	seen := make(map[string]int)
	for _, mention := range s.mentions(claim.Text) {
		facts, err := s.store.FindFacts(ctx, mention)
		if err != nil {
			return nil, fmt.Errorf("find facts for %q: %w", mention, err)
		}
		for _, f := range facts {
			item := model.EvidenceItem{
				SourceType:     model.SourceProfileFact,
				SourceID:       f.ID,
				Excerpt:        f.ProfileName + ": " + f.Statement,
				RelevanceScore: model.ClampScore(f.MatchScore * f.Confidence),
			}
			if i, ok := seen[f.ID]; ok {
				if item.RelevanceScore > items[i].RelevanceScore {
					items[i] = item
				}
				continue
			}
			seen[f.ID] = len(items)
			items = append(items, item)
		}
	}
	return items, nil
}

// mentions lists capitalized entity runs followed by word n-grams, longest first
func (s *ProfileSource) mentions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(m string) {
		key := strings.ToLower(m)
		if m == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, m)
	}

	for _, e := range extract.Entities(text) {
		add(e)
	}

	var words []string
	for _, w := range strings.Fields(text) {
		if w = strings.Trim(w, ",.!?;:()\"'"); w != "" {
			words = append(words, w)
		}
	}
	for n := min(s.maxNgram, len(words)); n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			if mentionStopwords[strings.ToLower(gram[0])] || mentionStopwords[strings.ToLower(gram[n-1])] {
				continue
			}
			add(strings.Join(gram, " "))
		}
	}
	return out
}

var mentionStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "has": true, "have": true, "had": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "will": true, "would": true, "should": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true, "from": true,
	"by": true, "with": true, "about": true, "and": true, "or": true, "but": true, "not": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"i": true, "we": true, "you": true, "he": true, "she": true, "they": true, "my": true,
	"our": true, "your": true, "his": true, "her": true, "their": true, "very": true,
}
