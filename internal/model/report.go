package model

import "time"

// VerdictStatus is the classification result for one claim
type VerdictStatus string

const (
	StatusVerified   VerdictStatus = "VERIFIED"
	StatusIncorrect  VerdictStatus = "INCORRECT"
	StatusNuanced    VerdictStatus = "NUANCED"
	StatusUnverified VerdictStatus = "UNVERIFIED"
	StatusNoData     VerdictStatus = "NO_DATA"
)

// ParseVerdictStatus maps classifier output to a status; NO_DATA is not accepted
// because it is reserved for empty evidence sets
func ParseVerdictStatus(s string) (VerdictStatus, bool) {
	switch VerdictStatus(s) {
	case StatusVerified, StatusIncorrect, StatusNuanced, StatusUnverified:
		return VerdictStatus(s), true
	}
	return "", false
}

// Questionable reports whether the status is flagged for review
func (s VerdictStatus) Questionable() bool {
	return s == StatusIncorrect || s == StatusNuanced
}

// ClaimVerdict is the validation result for one claim
type ClaimVerdict struct {
	ClaimID     string         `json:"claim_id"`
	Claim       Claim          `json:"claim"`
	Status      VerdictStatus  `json:"status"`
	Confidence  float64        `json:"confidence"`         // Always within [0,1], 0 for NO_DATA
	Explanation string         `json:"explanation"`        // One plain-language sentence
	Evidence    []EvidenceItem `json:"evidence"`           // Evidence the classifier saw
	Fallback    bool           `json:"fallback,omitempty"` // Set when the classifier never answered
}

// CredibilityReport is the aggregate output for one job
type CredibilityReport struct {
	JobID              string         `json:"job_id"`
	OverallScore       *float64       `json:"overall_score"` // nil when nothing could be checked
	Verdicts           []ClaimVerdict `json:"verdicts"`
	QuestionableClaims []ClaimVerdict `json:"questionable_claims"`
	Summary            string         `json:"summary"`
	Warnings           []string       `json:"warnings,omitempty"`
	Transcript         string         `json:"transcript,omitempty"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// StatusCounts tallies verdicts per status
func (r *CredibilityReport) StatusCounts() map[VerdictStatus]int {
	counts := make(map[VerdictStatus]int)
	for _, v := range r.Verdicts {
		counts[v.Status]++
	}
	return counts
}
