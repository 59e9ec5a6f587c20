package model

// Claim is one fact-checked claim returned by the claims index
type Claim struct {
	Text      string        `json:"text"`                // The claim text as indexed
	Claimant  string        `json:"claimant,omitempty"`  // Who made the claim
	ClaimDate string        `json:"claimDate,omitempty"` // When the claim was made (RFC3339 when present)
	Reviews   []ClaimReview `json:"claimReview"`         // One review per publisher
}

// ClaimReview is a single publisher's verdict on a claim
type ClaimReview struct {
	ClaimText     string `json:"claimText"`
	Claimant      string `json:"claimant,omitempty"`
	ClaimDate     string `json:"claimDate,omitempty"`
	PublisherName string `json:"publisherName"`
	PublisherSite string `json:"publisherSite,omitempty"`
	ReviewURL     string `json:"reviewUrl"`
	ReviewTitle   string `json:"reviewTitle"`
	ReviewDate    string `json:"reviewDate,omitempty"`
	TextualRating string `json:"textualRating,omitempty"` // e.g. "Mostly False"
	LanguageCode  string `json:"languageCode"`
}

// ReviewCount returns the total number of reviews across claims
func ReviewCount(claims []Claim) int {
	n := 0
	for _, c := range claims {
		n += len(c.Reviews)
	}
	return n
}
