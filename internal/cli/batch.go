package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/pipeline"
	"github.com/ppiankov/truthgauge/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchMD      bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many inputs from a file in parallel",
	Long: `Batch analyzes one input per line concurrently:
- Lines starting with http:// or https:// are fetched as web pages
- Lines starting with @ name a document or image (relative to the batch file)
- Any other line is analyzed as text
- Blank lines and lines starting with # are ignored

One JSON report per input is written to the output directory.

Example:
  truthgauge batch inputs.txt
  truthgauge batch inputs.txt --concurrency 8 --output-dir ./reports --md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent analyses (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./truthgauge-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchMD, "md", false, "also write a Markdown report per input")
	batchCmd.Flags().BoolVar(&saveResult, "save", false, "persist analyses to the configured SQLite store")

	addPipelineFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if saveResult {
		cfg.Store.Enabled = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  truthgauge Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}

	p, err := buildPipeline(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Processing inputs with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", truncateLabel(result.Label), result.Error)
			continue
		}

		base := reportName(result.Index, result.Label)
		if err := renderer.RenderJSON(result.Analysis, filepath.Join(outputDir, base+".json")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", truncateLabel(result.Label), err)
			continue
		}
		if batchMD {
			if err := renderer.RenderMarkdown(result.Analysis, filepath.Join(outputDir, base+".md")); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", truncateLabel(result.Label), err)
				continue
			}
		}

		successCount++
		fmt.Fprintln(os.Stderr, successLine(result.Label, result.Analysis.Result))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func successLine(label string, result model.AnalysisResult) string {
	return fmt.Sprintf("✓ %s (%s, %.1f%%)", truncateLabel(label),
		verdictLabel(result.IsLikelyTrue), model.ConfidencePercent(result.Confidence))
}

func verdictLabel(likelyTrue bool) string {
	if likelyTrue {
		return "likely true"
	}
	return "likely false"
}

// reportName builds a stable file name from the input position and label
func reportName(index int, label string) string {
	return fmt.Sprintf("%03d-%s", index+1, sanitizeFilename(label))
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"@", "",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = filenameReplacer.Replace(s)
	s = strings.Trim(s, "._-")

	// Limit length
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "input"
	}
	return s
}

func truncateLabel(s string) string {
	if len(s) > 70 {
		return s[:67] + "..."
	}
	return s
}
