package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/pipeline"
	"github.com/ppiankov/truthgauge/internal/store"
	"github.com/ppiankov/truthgauge/internal/worker"
)

var (
	inputFile   string
	inputType   string
	inputURL    string
	outJSON     string
	outMD       string
	timeout     time.Duration
	splitClaims bool
	saveResult  bool
	noCache     bool
	noFooter    bool
	insecureTLS bool
	httpProxy   string
	httpsProxy  string
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Verify a piece of text, a document, an image or a web page",
	Long: `Analyze runs one submission through the verification pipeline:
- Extract plain text (PDF, DOCX, DOC, PNG/JPEG via OCR, or a web page)
- Look up published fact checks for the content
- Aggregate the fact-check ratings into an evidence score
- Ask the configured model for a verdict grounded in that evidence

Text may be passed as an argument or piped on stdin with "-".

Example:
  truthgauge analyze "The Great Wall of China is visible from space"
  truthgauge analyze --file claim.pdf --json result.json
  truthgauge analyze --url https://example.com/story --md report.md
  echo "5G towers spread viruses" | truthgauge analyze - --provider openai`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Input flags
	analyzeCmd.Flags().StringVar(&inputFile, "file", "", "document or image to analyze")
	analyzeCmd.Flags().StringVar(&inputType, "type", "", "declared media type for --file (default: from extension)")
	analyzeCmd.Flags().StringVar(&inputURL, "url", "", "web page to analyze")

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().BoolVar(&saveResult, "save", false, "persist the analysis to the configured SQLite store")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall analysis timeout")

	addPipelineFlags(analyzeCmd)
}

// addPipelineFlags registers flags shared by analyze, batch and serve
func addPipelineFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&splitClaims, "split-claims", false, "query fact checks per extracted claim instead of the whole text")
	fs.BoolVar(&noCache, "no-cache", false, "disable the evidence cache")
	fs.BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	fs.BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	fs.StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fs.StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	fs.StringVar(&llmProvider, "provider", "", "model provider (gemini, openai, anthropic, ollama)")
	fs.StringVar(&llmModel, "model", "", "model name")
}

// buildConfig loads the layered configuration and applies changed flags
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	fs := cmd.Flags()

	// Provider must be known before credentials are copied from the environment
	if fs.Changed("provider") {
		viper.Set("llm.provider", llmProvider)
		if !fs.Changed("model") {
			viper.Set("llm.model", "")
		}
	}
	if fs.Changed("model") {
		viper.Set("llm.model", llmModel)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if fs.Changed("split-claims") {
		cfg.FactCheck.SplitClaims = splitClaims
	}
	if fs.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if fs.Changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if fs.Changed("insecure") {
		cfg.HTTP.InsecureTLS = insecureTLS
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose

	return cfg, nil
}

// buildInput selects the input variant from arguments and flags
func buildInput(args []string, stdin io.Reader) (model.RawInput, error) {
	sources := 0
	if len(args) > 0 {
		sources++
	}
	if inputFile != "" {
		sources++
	}
	if inputURL != "" {
		sources++
	}
	if sources != 1 {
		return model.RawInput{}, errors.New("provide exactly one of: text argument, --file, or --url")
	}

	switch {
	case inputURL != "":
		return model.URLInput(inputURL), nil

	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return model.RawInput{}, fmt.Errorf("read %s: %w", inputFile, err)
		}
		mediaType := inputType
		if mediaType == "" {
			mediaType = worker.MediaTypeForPath(inputFile)
		}
		return model.FileInput(data, mediaType, filepath.Base(inputFile)), nil

	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return model.RawInput{}, fmt.Errorf("read stdin: %w", err)
		}
		return model.TextInput(string(data)), nil

	default:
		return model.TextInput(args[0]), nil
	}
}

// openStore opens the SQLite store when persistence is requested
func openStore(cfg *model.Config) (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// buildPipeline assembles the pipeline, attaching st only when non-nil so
// the interface never holds a typed nil
func buildPipeline(ctx context.Context, cfg *model.Config, st *store.Store) (*pipeline.Pipeline, error) {
	if st == nil {
		return pipeline.Build(ctx, cfg, nil)
	}
	return pipeline.Build(ctx, cfg, st)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	input, err := buildInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if saveResult {
		cfg.Store.Enabled = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

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

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing %s input\n", input.Kind)
		fmt.Fprintf(os.Stderr, "Model: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
	}

	analysis, err := p.Analyze(ctx, input)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	renderer.RenderSummary(cmd.OutOrStdout(), analysis)

	if outJSON != "" {
		if err := renderer.RenderJSON(analysis, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(analysis, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	if cfg.Output.Verbose && len(analysis.Result.Sources) > 0 {
		fmt.Fprintf(os.Stderr, "Sources cited: %s\n", citedPublishers(analysis.Result.Sources))
	}

	return nil
}

func citedPublishers(sources []model.ResultSource) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, fmt.Sprintf("%s (%s)", s.Publisher, s.Rating))
	}
	return strings.Join(names, ", ")
}
