package model

// Claim represents an atomic assertion extracted from a statement
type Claim struct {
	ID        string     `json:"id"`                  // Deterministic per input (claim-1, claim-2, ...)
	Text      string     `json:"text"`                // Verbatim surface text from the input
	Class     ClaimClass `json:"class"`               // Rhetorical class
	Index     int        `json:"source_claim_index"`  // Position in the source (0-based)
	Heuristic string     `json:"heuristic,omitempty"` // Which lexical cue decided the class (e.g., "prediction:will")
}

// ClaimClass categorizes the rhetorical nature of the claim
type ClaimClass string

const (
	ClassFact       ClaimClass = "FACT"       // Checkable, objective assertion
	ClassStatement  ClaimClass = "STATEMENT"  // Subjective or unverifiable assertion
	ClassPrediction ClaimClass = "PREDICTION" // Future-tense claim
	ClassOpinion    ClaimClass = "OPINION"    // Explicitly evaluative language
)
