package extract

import (
	"strings"
	"unicode"
)

// ClaimSplitter picks check-worthy sentences out of plain text so they can
// be queried against the claims index one at a time
type ClaimSplitter struct {
	keywords  []string
	maxClaims int
}

// NewClaimSplitter creates a splitter returning at most maxClaims sentences
func NewClaimSplitter(maxClaims int) *ClaimSplitter {
	if maxClaims <= 0 {
		maxClaims = 5
	}
	return &ClaimSplitter{
		keywords: []string{
			"according to", "study", "studies", "research", "report", "survey",
			"percent", "%", "million", "billion", "thousand",
			"claims", "claimed", "said", "says", "announced", "confirmed",
			"caused", "causes", "cure", "cures", "vaccine", "proven",
			"first", "largest", "highest", "lowest", "never", "always",
			"banned", "illegal", "law", "is the", "was the", "will be",
		},
		maxClaims: maxClaims,
	}
}

// Split returns candidate claims in document order. Sentences carrying a
// factual signal (keyword or number) are preferred; when none qualify the
// leading sentences are used so that a non-empty text always yields a query.
func (s *ClaimSplitter) Split(text string) []string {
	sentences := splitSentences(text)

	var claims []string
	for _, sentence := range sentences {
		if s.isCheckWorthy(sentence) {
			claims = append(claims, sentence)
		}
	}
	if len(claims) == 0 {
		claims = sentences
	}
	claims = dedupeClaims(claims)

	if len(claims) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}
	if len(claims) > s.maxClaims {
		claims = claims[:s.maxClaims]
	}
	return claims
}

func (s *ClaimSplitter) isCheckWorthy(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, keyword := range s.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return strings.IndexFunc(sentence, unicode.IsDigit) >= 0
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Look ahead to avoid splitting on abbreviations and decimals
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				sentence := strings.TrimSpace(current.String())
				if len(sentence) >= 30 && len(sentence) <= 500 {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 30 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
	}

	return sentences
}

// dedupeClaims removes duplicate sentences, ignoring case
func dedupeClaims(claims []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}
