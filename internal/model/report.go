package model

import (
	"strings"
	"time"
)

// Rating is the closed set of verdicts a result source may carry
type Rating string

const (
	RatingTrue       Rating = "True"
	RatingFalse      Rating = "False"
	RatingMisleading Rating = "Misleading"
	RatingUnverified Rating = "Unverified"
)

// Ratings lists the enumeration in display order
var Ratings = []Rating{RatingTrue, RatingFalse, RatingMisleading, RatingUnverified}

// ParseRating canonicalizes s into the enumeration.
// Matching is case-insensitive; anything else becomes Unverified.
func ParseRating(s string) Rating {
	s = strings.TrimSpace(s)
	for _, r := range Ratings {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return RatingUnverified
}

// AnalysisResult is the final verdict handed to the caller.
// Confidence is a fraction in [0,1]; presentation layers convert to a percentage.
type AnalysisResult struct {
	IsLikelyTrue bool           `json:"isLikelyTrue"`
	Confidence   float64        `json:"confidence"`
	Summary      string         `json:"summary"`
	Explanation  string         `json:"explanation"`
	Sources      []ResultSource `json:"sources"`
}

// ResultSource is a source cited by the final verdict
type ResultSource struct {
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
	Rating    Rating `json:"rating"`
}

// ConfidencePercent renders a [0,1] confidence as a percentage
func ConfidencePercent(c float64) float64 {
	return c * 100
}

// Analysis is the complete outcome of one pipeline run
type Analysis struct {
	ID        string            `json:"id,omitempty"`
	InputKind InputKind         `json:"inputKind"`
	Document  ExtractedDocument `json:"document"`
	Claims    []Claim           `json:"claims"`
	Evidence  EvidenceSummary   `json:"evidence"`
	Result    AnalysisResult    `json:"result"`
	Provider  string            `json:"provider,omitempty"` // openai, anthropic, ollama, gemini
	Model     string            `json:"model,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
