package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/ppiankov/truthgauge/internal/model"
)

const (
	// MaxPromptTextChars bounds how much of the submitted text reaches the model
	MaxPromptTextChars = 12000

	// maxPromptReviews bounds the evidence list to avoid token bloat
	maxPromptReviews = 20
)

// promptReview is the compact evidence shape shown to the model
type promptReview struct {
	Claim     string `json:"claim"`
	Claimant  string `json:"claimant,omitempty"`
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
	Rating    string `json:"rating"`
}

// BuildPrompt constructs the verification prompt from the extracted text,
// the aggregated evidence summary and the raw claim reviews.
func BuildPrompt(text string, summary model.EvidenceSummary, claims []model.Claim) string {
	var b strings.Builder

	b.WriteString("You are helping to verify the truthfulness of a piece of content using published fact-check data.\n\n")

	b.WriteString("Content:\n\"\"\"\n")
	b.WriteString(truncateText(text, MaxPromptTextChars))
	b.WriteString("\n\"\"\"\n\n")

	fmt.Fprintf(&b, "Evidence summary (computed from %d fact checks):\n", model.ReviewCount(claims))
	fmt.Fprintf(&b, "- Verdict: %s\n", verdictLabel(summary.IsFactual))
	fmt.Fprintf(&b, "- Confidence: %.2f\n", summary.Confidence)
	fmt.Fprintf(&b, "- %s\n\n", summary.Summary)

	b.WriteString("Fact-check results:\n")
	b.WriteString(evidenceJSON(claims))
	b.WriteString("\n\n")

	b.WriteString(`Instructions:
1. Relate the content to the fact-check results.
2. Decide whether the content is likely true or likely false.
3. Summarize the content in one paragraph.
4. Explain your reasoning using evidence from the fact-check results.
5. List the sources that support your assessment.

Respond with a single JSON object in exactly this format:

{
  "isLikelyTrue": boolean,
  "confidence": number between 0 and 1,
  "summary": string,
  "explanation": string,
  "sources": [
    {
      "publisher": string,
      "url": string,
      "rating": "True" | "False" | "Misleading" | "Unverified"
    }
  ]
}
`)

	return b.String()
}

func verdictLabel(factual bool) string {
	if factual {
		return "likely true"
	}
	return "potentially false"
}

func evidenceJSON(claims []model.Claim) string {
	reviews := make([]promptReview, 0, maxPromptReviews)
	omitted := 0
	for _, c := range claims {
		for _, r := range c.Reviews {
			if len(reviews) >= maxPromptReviews {
				omitted++
				continue
			}
			reviews = append(reviews, promptReview{
				Claim:     c.Text,
				Claimant:  c.Claimant,
				Publisher: r.PublisherName,
				URL:       r.ReviewURL,
				Rating:    r.TextualRating,
			})
		}
	}

	if len(reviews) == 0 {
		return "(No fact checks found for this content)"
	}

	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return "(Fact checks unavailable)"
	}
	out := string(data)
	if omitted > 0 {
		out += fmt.Sprintf("\n... and %d more fact checks", omitted)
	}
	return out
}

// truncateText cuts text to at most limit characters, preferring paragraph
// and sentence boundaries.
func truncateText(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(limit),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		return string([]rune(text)[:limit])
	}
	return chunks[0] + "\n[... truncated]"
}
