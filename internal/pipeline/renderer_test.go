package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/truthgauge/internal/model"
)

func sampleAnalysis() *model.Analysis {
	return &model.Analysis{
		ID:        "3f2a",
		InputKind: model.InputURL,
		Document: model.ExtractedDocument{
			Text:            "The moon landing was staged.",
			SourceMediaType: "text/html",
			SourceURL:       "https://example.com/moon",
			Title:           "Moon Landing",
		},
		Claims: []model.Claim{{
			Text:    "The moon landing was staged",
			Reviews: []model.ClaimReview{review("Snopes", "False")},
		}},
		Evidence: model.EvidenceSummary{
			Summary:     "Based on 1 fact checks from 1 sources, this claim appears to be potentially false with 0.0% confidence.",
			Explanation: "Most fact-checking sources have labeled this claim as false, misleading, or lacking evidence.",
			Sources:     []model.EvidenceSource{{Publisher: "Snopes", URL: "https://snopes.com", Rating: "False"}},
		},
		Result: model.AnalysisResult{
			IsLikelyTrue: false,
			Confidence:   0.92,
			Summary:      "The landing is well documented.",
			Explanation:  "Independent evidence confirms it.",
			Sources:      []model.ResultSource{{Publisher: "A|B", URL: "https://snopes.com", Rating: model.RatingFalse}},
		},
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(true).Markdown(sampleAnalysis())

	for _, want := range []string{
		"# Moon Landing",
		"**Source:** https://example.com/moon",
		"`3f2a`",
		"**Likely False** (92.0% confidence)",
		"### Sources cited",
		"| A\\|B | False | https://snopes.com |",
		"## Fact-check evidence",
		"*Generated by truthgauge.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderer_MarkdownWithoutFooter(t *testing.T) {
	a := sampleAnalysis()
	a.Document.Title = ""
	a.Result.Sources = []model.ResultSource{}

	md := NewRenderer(false).Markdown(a)
	if strings.Contains(md, "Generated by truthgauge") {
		t.Error("Footer should be omitted")
	}
	if !strings.HasPrefix(md, "# Content verification") {
		t.Errorf("Expected default title, got %q", md[:40])
	}
	if strings.Contains(md, "### Sources cited") {
		t.Error("Sources section should be omitted when empty")
	}
}

func TestRenderer_RenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := NewRenderer(true).RenderJSON(sampleAnalysis(), path); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded model.Analysis
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Result.Confidence != 0.92 || decoded.ID != "3f2a" {
		t.Errorf("Unexpected decoded analysis: %+v", decoded)
	}
}

func TestRenderer_RenderMarkdownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	if err := NewRenderer(false).RenderMarkdown(sampleAnalysis(), path); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "## Verdict") {
		t.Error("Markdown file missing verdict section")
	}
}

func TestRenderer_RenderSummary(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(true).RenderSummary(&buf, sampleAnalysis())

	out := buf.String()
	for _, want := range []string{"Likely False", "92.0%", "1 fact checks", "Saved as 3f2a"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q\n%s", want, out)
		}
	}
}
