package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// ErrMalformedResponse is returned when the classifier reply cannot be parsed
var ErrMalformedResponse = errors.New("malformed classifier response")

const systemPrompt = `You are a strict fact checker. You judge one claim against numbered evidence excerpts and nothing else.

Statuses:
- VERIFIED: the evidence supports the claim.
- INCORRECT: the evidence contradicts the claim.
- NUANCED: the evidence partly supports it, or some excerpts support it while others contradict it.
- UNVERIFIED: the evidence is related but neither supports nor contradicts the claim.

Reply with one JSON object:
{"status": "VERIFIED|INCORRECT|NUANCED|UNVERIFIED", "confidence": 0.0-1.0, "explanation": "one plain-language sentence", "stances": [{"evidence": 1, "stance": "supports|contradicts|neutral"}]}`

// Stance of one evidence excerpt towards the claim
const (
	stanceSupports    = "supports"
	stanceContradicts = "contradicts"
)

// buildPrompt renders the claim and its evidence as numbered excerpts
func buildPrompt(claim model.Claim, evidence []model.EvidenceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %q\n\nEvidence:\n", claim.Text)
	for i, e := range evidence {
		fmt.Fprintf(&b, "[%d] (%s, relevance %.2f) %s\n", i+1, e.SourceType, e.RelevanceScore, strings.TrimSpace(e.Excerpt))
	}
	b.WriteString("\nClassify the claim using only this evidence.")
	return b.String()
}

type classifierReply struct {
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Stances     []struct {
		Evidence int    `json:"evidence"`
		Stance   string `json:"stance"`
	} `json:"stances"`
}

// classification is a parsed classifier reply after policy is applied
type classification struct {
	status      model.VerdictStatus
	confidence  float64
	explanation string
}

// parseReply extracts the JSON object from text and applies the conflict policy:
// an excerpt that supports and another that contradicts force NUANCED
func parseReply(text string, evidenceCount int) (classification, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return classification{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(text, 120))
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	label := strings.ToUpper(strings.TrimSpace(reply.Status))
	status, ok := model.ParseVerdictStatus(label)
	if !ok {
		if label != string(model.StatusNoData) {
			return classification{}, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, reply.Status)
		}
		// The model saw evidence, so "no data" means it could not decide
		status = model.StatusUnverified
	}

	supports, contradicts := false, false
	for _, s := range reply.Stances {
		if s.Evidence < 1 || s.Evidence > evidenceCount {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s.Stance)) {
		case stanceSupports:
			supports = true
		case stanceContradicts:
			contradicts = true
		}
	}
	if supports && contradicts {
		status = model.StatusNuanced
	}

	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		explanation = defaultExplanation(status)
	}

	return classification{
		status:      status,
		confidence:  model.ClampScore(reply.Confidence),
		explanation: explanation,
	}, nil
}

// extractJSONObject returns the outermost {...} span, tolerating code fences and prose
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func defaultExplanation(status model.VerdictStatus) string {
	switch status {
	case model.StatusVerified:
		return "The evidence supports this claim."
	case model.StatusIncorrect:
		return "The evidence contradicts this claim."
	case model.StatusNuanced:
		return "The evidence only partly supports this claim."
	default:
		return "The evidence neither supports nor contradicts this claim."
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
