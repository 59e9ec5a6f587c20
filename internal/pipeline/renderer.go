package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Renderer writes analyses as JSON, Markdown and terminal summaries.
// Confidence is stored as a fraction and shown as a percentage here only.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the analysis as indented JSON
func (r *Renderer) RenderJSON(a *model.Analysis, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the analysis as a Markdown report
func (r *Renderer) RenderMarkdown(a *model.Analysis, path string) error {
	return writeFile(path, []byte(r.Markdown(a)))
}

// Markdown builds the Markdown report
func (r *Renderer) Markdown(a *model.Analysis) string {
	var b strings.Builder

	title := a.Document.Title
	if title == "" {
		title = "Content verification"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if a.Document.SourceURL != "" {
		fmt.Fprintf(&b, "**Source:** %s  \n", a.Document.SourceURL)
	}
	if a.ID != "" {
		fmt.Fprintf(&b, "**Analysis ID:** `%s`  \n", a.ID)
	}
	fmt.Fprintf(&b, "**Analyzed:** %s  \n", a.CreatedAt.Format("2006-01-02 15:04 MST"))
	if a.Provider != "" {
		fmt.Fprintf(&b, "**Model:** %s/%s\n", a.Provider, a.Model)
	}
	b.WriteString("\n")

	b.WriteString("## Verdict\n\n")
	fmt.Fprintf(&b, "**%s** (%.1f%% confidence)\n\n", verdictText(a.Result.IsLikelyTrue), model.ConfidencePercent(a.Result.Confidence))
	if a.Result.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Result.Summary)
	}
	if a.Result.Explanation != "" {
		b.WriteString("### Explanation\n\n")
		fmt.Fprintf(&b, "%s\n\n", a.Result.Explanation)
	}

	if len(a.Result.Sources) > 0 {
		b.WriteString("### Sources cited\n\n")
		b.WriteString("| Publisher | Rating | Link |\n|---|---|---|\n")
		for _, s := range a.Result.Sources {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(s.Publisher), s.Rating, escapeCell(s.URL))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Fact-check evidence\n\n")
	fmt.Fprintf(&b, "%s\n\n", a.Evidence.Summary)
	fmt.Fprintf(&b, "%s\n\n", a.Evidence.Explanation)
	if len(a.Evidence.Sources) > 0 {
		b.WriteString("| Publisher | Rating | Link |\n|---|---|---|\n")
		for _, s := range a.Evidence.Sources {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(s.Publisher), escapeCell(s.Rating), escapeCell(s.URL))
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*Generated by truthgauge. The confidence figure is an estimate built from published fact checks and a model's judgment, not a ground-truth verdict.*\n")
	}

	return b.String()
}

// RenderSummary prints a short verdict for terminals
func (r *Renderer) RenderSummary(w io.Writer, a *model.Analysis) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Verdict:     %s\n", verdictText(a.Result.IsLikelyTrue))
	_, _ = fmt.Fprintf(w, "Confidence:  %.1f%%\n", model.ConfidencePercent(a.Result.Confidence))
	_, _ = fmt.Fprintf(w, "Evidence:    %d fact checks (%.1f%% evidence confidence)\n",
		model.ReviewCount(a.Claims), model.ConfidencePercent(a.Evidence.Confidence))
	if a.Result.Summary != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", a.Result.Summary)
	}
	if a.ID != "" {
		_, _ = fmt.Fprintf(w, "\nSaved as %s\n", a.ID)
	}
	_, _ = fmt.Fprintln(w)
}

func verdictText(likelyTrue bool) string {
	if likelyTrue {
		return "Likely True"
	}
	return "Likely False"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
