package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Normalize turns raw model output into a validated AnalysisResult.
// Fence stripping and schema validation are separate steps.
func Normalize(raw string) (model.AnalysisResult, error) {
	payload := StripFence(raw)
	if payload == "" {
		return model.AnalysisResult{}, model.NewError(model.KindUnparsableModelOutput, "empty model output", nil)
	}
	return Validate([]byte(payload))
}

// Validate strictly decodes a JSON object into an AnalysisResult.
// Recoverable defects (missing sources, unknown ratings, out of range
// confidence) are repaired; anything else is a hard failure.
func Validate(payload []byte) (model.AnalysisResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		if err == nil {
			err = fmt.Errorf("payload is null")
		}
		return model.AnalysisResult{}, model.NewError(model.KindUnparsableModelOutput, "model output is not a JSON object", err)
	}

	var result model.AnalysisResult

	isTrue, ok := fields["isLikelyTrue"]
	if !ok {
		return model.AnalysisResult{}, unparsable("missing isLikelyTrue")
	}
	if err := json.Unmarshal(isTrue, &result.IsLikelyTrue); err != nil || isNull(isTrue) {
		return model.AnalysisResult{}, unparsable("isLikelyTrue is not a boolean")
	}

	var err error
	if result.Summary, err = optionalString(fields, "summary"); err != nil {
		return model.AnalysisResult{}, err
	}
	if result.Explanation, err = optionalString(fields, "explanation"); err != nil {
		return model.AnalysisResult{}, err
	}

	if result.Confidence, err = confidence(fields["confidence"]); err != nil {
		return model.AnalysisResult{}, err
	}

	result.Sources = sources(fields["sources"])

	return result, nil
}

func unparsable(msg string) error {
	return model.NewError(model.KindUnparsableModelOutput, msg, nil)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// optionalString decodes a string field; absent or null yields ""
func optionalString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", unparsable(key + " is not a string")
	}
	return s, nil
}

// percentFloor separates unit-scale overshoot from percentages
const percentFloor = 1.5

// confidence decodes and clamps the confidence field into [0,1].
// Values in (1.5,100] are read as percentages.
func confidence(raw json.RawMessage) (float64, error) {
	if raw == nil || isNull(raw) {
		return 0, model.NewError(model.KindInvalidConfidence, "confidence is missing", nil)
	}
	var c float64
	if err := json.Unmarshal(raw, &c); err != nil {
		return 0, model.NewError(model.KindInvalidConfidence, fmt.Sprintf("confidence is not a number: %s", raw), nil)
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, model.NewError(model.KindInvalidConfidence, "confidence is not finite", nil)
	}
	if c > percentFloor && c <= 100 {
		c /= 100
	}
	return math.Max(0, math.Min(1, c)), nil
}

// sources decodes the sources list, dropping entries that are not objects
// and coercing ratings into the closed enumeration. Never returns nil.
func sources(raw json.RawMessage) []model.ResultSource {
	out := []model.ResultSource{}
	if raw == nil {
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}

	for _, item := range items {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
			continue
		}
		publisher, _ := looseString(entry["publisher"])
		url, _ := looseString(entry["url"])
		rating, _ := looseString(entry["rating"])
		out = append(out, model.ResultSource{
			Publisher: publisher,
			URL:       url,
			Rating:    model.ParseRating(rating),
		})
	}
	return out
}

// looseString decodes raw as a string, returning "" for any other type
func looseString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
