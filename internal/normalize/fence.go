package normalize

import (
	"regexp"
	"strings"
)

// fencePattern spans from the first opening fence to the last closing one,
// so fences quoted inside the payload do not end the match early
var fencePattern = regexp.MustCompile("```(?:json|JSON)?([\\s\\S]*)```")

// StripFence removes an optional ```json fence around raw model output.
// When the remaining text still carries prose around the object, the
// outermost {...} span is returned. Text with no object is returned trimmed.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
