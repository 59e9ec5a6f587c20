package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/truthgauge/internal/model"
)

// FactualThreshold is the minimum average score for a claim to count as factual
const FactualThreshold = 0.6

// NeutralScore is assigned to ratings that match no known phrase
const NeutralScore = 0.5

const (
	noEvidenceSummary     = "No fact-checking information found."
	noEvidenceExplanation = "This claim could not be cross-referenced with any reliable fact-check databases. It may be too new, too broad, or widely accepted as common knowledge."
	factualExplanation    = "The majority of sources have labeled this claim as true, mostly true, or supported by facts."
	nonFactualExplanation = "Most fact-checking sources have labeled this claim as false, misleading, or lacking evidence."
	unknownRating         = "Unknown"
)

// ratingPhrase maps a lowercase phrase to a truthfulness score in [0,1]
type ratingPhrase struct {
	phrase string
	score  float64
}

// ratingTable is matched by substring, first match wins.
// Qualified phrases precede the bare "false"/"true" they contain.
var ratingTable = []ratingPhrase{
	{"partly false", 0.4},
	{"mostly false", 0.2},
	{"false", 0.0},
	{"pants on fire", 0.0},
	{"mostly true", 0.9},
	{"half true", 0.6},
	{"partly true", 0.6},
	{"mixture", 0.5},
	{"misleading", 0.2},
	{"inaccurate", 0.2},
	{"unsupported", 0.3},
	{"no evidence", 0.3},
	{"true", 1.0},
}

// RatingScore maps a publisher's textual rating to a score in [0,1]
func RatingScore(rating string) float64 {
	r := strings.ToLower(strings.TrimSpace(rating))
	if r == "" {
		return NeutralScore
	}
	for _, p := range ratingTable {
		if strings.Contains(r, p.phrase) {
			return p.score
		}
	}
	return NeutralScore
}

// Aggregator collapses claim reviews into one evidence summary.
// It holds no state; the same input always yields the same summary.
type Aggregator struct{}

// NewAggregator creates a new aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the evidence summary for claims
func (a *Aggregator) Aggregate(claims []model.Claim) model.EvidenceSummary {
	return Aggregate(claims)
}

// Aggregate computes the evidence summary for claims. Empty input, or claims
// without any reviews, yield the "no evidence" summary.
func Aggregate(claims []model.Claim) model.EvidenceSummary {
	// Table scores are multiples of 0.1, so the sum is kept in integer
	// tenths and the threshold comparison is exact
	var tenths, count int
	sources := make([]model.EvidenceSource, 0, model.ReviewCount(claims))
	publishers := make(map[string]struct{})

	for _, claim := range claims {
		for _, review := range claim.Reviews {
			tenths += scoreTenths(RatingScore(review.TextualRating))
			count++

			rating := review.TextualRating
			if rating == "" {
				rating = unknownRating
			}
			sources = append(sources, model.EvidenceSource{
				Publisher: review.PublisherName,
				URL:       review.ReviewURL,
				Rating:    rating,
			})
			publishers[review.PublisherName] = struct{}{}
		}
	}

	if count == 0 {
		return noEvidence()
	}

	avg := float64(tenths) / float64(10*count)
	isFactual := tenths*10 >= scoreTenths(FactualThreshold)*count

	verdict := "potentially false"
	explanation := nonFactualExplanation
	if isFactual {
		verdict = "likely true"
		explanation = factualExplanation
	}

	return model.EvidenceSummary{
		IsFactual:   isFactual,
		Confidence:  roundTo(avg, 2),
		Summary:     fmt.Sprintf("Based on %d fact checks from %d sources, this claim appears to be %s with %.1f%% confidence.", count, len(publishers), verdict, avg*100),
		Explanation: explanation,
		Sources:     sources,
	}
}

func scoreTenths(score float64) int {
	return int(math.Round(score * 10))
}

func noEvidence() model.EvidenceSummary {
	return model.EvidenceSummary{
		IsFactual:   false,
		Confidence:  0,
		Summary:     noEvidenceSummary,
		Explanation: noEvidenceExplanation,
		Sources:     []model.EvidenceSource{},
	}
}

// roundTo rounds v to the given number of decimal places
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
