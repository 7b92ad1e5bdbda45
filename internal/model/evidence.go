package model

// EvidenceItem is one piece of retrieved context used to judge a claim
type EvidenceItem struct {
	SourceType     SourceType `json:"source_type"`     // document or profile_fact
	SourceID       string     `json:"source_id"`       // Chunk or fact identifier
	Excerpt        string     `json:"excerpt"`         // Text shown to the classifier and the user
	RelevanceScore float64    `json:"relevance_score"` // Always within [0,1]
}

// SourceType tags which evidence source produced an item
type SourceType string

const (
	SourceDocument    SourceType = "document"     // Chunk from the vector index
	SourceProfileFact SourceType = "profile_fact" // Structured fact from the profile store
)

// Precedence orders sources for tie-breaking (lower sorts first)
func (s SourceType) Precedence() int {
	switch s {
	case SourceProfileFact:
		return 0
	case SourceDocument:
		return 1
	default:
		return 2
	}
}

// ClampScore bounds a similarity or confidence value into [0,1]
func ClampScore(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ProfileType classifies a profile in the profile store
type ProfileType string

const (
	ProfilePerson ProfileType = "person"
	ProfileBrand  ProfileType = "brand"
	ProfileClient ProfileType = "client"
)

// ProfileFact is a structured fact about a named entity
type ProfileFact struct {
	ID          string      `json:"id" yaml:"id"`
	ProfileID   string      `json:"profile_id" yaml:"-"`
	ProfileName string      `json:"profile_name" yaml:"-"`
	ProfileType ProfileType `json:"profile_type,omitempty" yaml:"-"`
	Statement   string      `json:"statement" yaml:"statement"`
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	SourceType  string      `json:"source_type,omitempty" yaml:"source_type,omitempty"` // manual, document, import
	Verified    bool        `json:"verified" yaml:"verified"`
	Tags        []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
	MatchScore  float64     `json:"match_score,omitempty" yaml:"-"` // How well the lookup name matched (0-1)
}

// Profile is a named entity with aliases and facts
type Profile struct {
	ID      string        `json:"id" yaml:"id"`
	Name    string        `json:"name" yaml:"name"`
	Type    ProfileType   `json:"type" yaml:"type"`
	Aliases []string      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Facts   []ProfileFact `json:"facts" yaml:"facts"`
}
