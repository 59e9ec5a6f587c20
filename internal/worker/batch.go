package worker

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Analyzer runs the verification pipeline for one input
type Analyzer interface {
	Analyze(ctx context.Context, input model.RawInput) (*model.Analysis, error)
}

// BatchInput is one line of a batch file
type BatchInput struct {
	Label string // Original line, for reporting
	Input model.RawInput
}

// AnalyzeJob runs one batch input through the analyzer
type AnalyzeJob struct {
	Index    int
	Item     BatchInput
	Analyzer Analyzer
}

// Execute executes the analysis
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	analysis, err := j.Analyzer.Analyze(ctx, j.Item.Input)
	return &BatchResult{
		Index:    j.Index,
		Label:    j.Item.Label,
		Analysis: analysis,
		Error:    err,
	}
}

// BatchResult is the outcome of one batch input
type BatchResult struct {
	Index    int
	Label    string
	Analysis *model.Analysis
	Error    error
}

// GetError returns the error from the analysis
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many inputs concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessInputs analyzes inputs concurrently. Results are returned in input order.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, items []BatchInput) []*BatchResult {
	if len(items) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, item := range items {
		if !pool.Submit(&AnalyzeJob{Index: i, Item: item, Analyzer: b.analyzer}) {
			break
		}
	}

	results := make([]*BatchResult, 0, len(items))
	for _, r := range pool.Wait() {
		results = append(results, r.(*BatchResult))
	}

	// Inputs never handed to a worker are reported as cancelled
	done := make(map[int]bool, len(results))
	for _, r := range results {
		done[r.Index] = true
	}
	for i, item := range items {
		if done[i] {
			continue
		}
		err := model.ContextError(ctx, "batch")
		if err == nil {
			err = fmt.Errorf("not processed")
		}
		results = append(results, &BatchResult{Index: i, Label: item.Label, Error: err})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// ProcessFile reads inputs from a file and analyzes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	items, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, items), nil
}

// ReadInputsFromFile reads one input per line. Lines starting with http://
// or https:// are URLs, lines starting with @ name a file (relative to the
// batch file), anything else is analyzed as text. Blank lines and # comments
// are skipped; duplicate lines are analyzed once.
func ReadInputsFromFile(filePath string) ([]BatchInput, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	baseDir := filepath.Dir(filePath)

	var items []BatchInput
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		input, err := ParseInputLine(line, baseDir)
		if err != nil {
			return nil, err
		}
		items = append(items, BatchInput{Label: line, Input: input})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}

// ParseInputLine classifies a single batch line
func ParseInputLine(line, baseDir string) (model.RawInput, error) {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return model.URLInput(line), nil

	case strings.HasPrefix(line, "@"):
		path := strings.TrimSpace(line[1:])
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return model.RawInput{}, fmt.Errorf("read %s: %w", path, err)
		}
		return model.FileInput(data, MediaTypeForPath(path), filepath.Base(path)), nil

	default:
		return model.TextInput(line), nil
	}
}

// mediaTypes covers extensions the system MIME table may lack
var mediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
}

// MediaTypeForPath declares a media type from a file extension
func MediaTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
