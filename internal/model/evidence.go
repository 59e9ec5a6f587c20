package model

// EvidenceSummary is the aggregate verdict computed purely from claim reviews.
// It never depends on the generative model.
type EvidenceSummary struct {
	IsFactual   bool             `json:"isFactual"`
	Confidence  float64          `json:"confidence"` // Always within [0,1]
	Summary     string           `json:"summary"`
	Explanation string           `json:"explanation"`
	Sources     []EvidenceSource `json:"sources"`
}

// EvidenceSource is one review as seen by the aggregator.
// Rating keeps the publisher's original wording ("Unknown" when absent).
type EvidenceSource struct {
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
	Rating    string `json:"rating"`
}
