// Package pipeline runs content verification end to end:
// input resolution, evidence lookup, aggregation, synthesis and normalization.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/truthgauge/internal/cache"
	"github.com/ppiankov/truthgauge/internal/extract"
	"github.com/ppiankov/truthgauge/internal/metrics"
	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/normalize"
	"github.com/ppiankov/truthgauge/internal/score"
)

// Extractor turns uploaded bytes into plain text
type Extractor interface {
	Extract(ctx context.Context, data []byte, declaredMediaType string) (model.ExtractedDocument, error)
}

// EvidenceFetcher looks up published fact checks
type EvidenceFetcher interface {
	Fetch(ctx context.Context, query string) ([]model.Claim, error)
	FetchAll(ctx context.Context, queries []string) ([]model.Claim, error)
}

// Synthesizer asks a generative model for a raw verdict
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, summary model.EvidenceSummary, claims []model.Claim) (string, error)
	ProviderName() string
	Model() string
	Available(ctx context.Context) bool
}

// PageFetcher retrieves web pages for URL inputs
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error)
}

// Store persists finished analyses and returns their identifier
type Store interface {
	Save(ctx context.Context, analysis model.Analysis, originalText string) (string, error)
}

// Deps are the pipeline's collaborators. Pages and Store are optional.
type Deps struct {
	Extractor   Extractor
	Evidence    EvidenceFetcher
	Synthesizer Synthesizer
	Pages       PageFetcher
	Store       Store
	Cache       cache.Cache // released by Close; nil when caching is off
}

// Pipeline orchestrates the complete verification process
type Pipeline struct {
	extractor   Extractor
	evidence    EvidenceFetcher
	aggregator  *score.Aggregator
	synthesizer Synthesizer
	pages       PageFetcher
	store       Store
	cache       cache.Cache
	splitter    *extract.ClaimSplitter // nil unless per-claim queries are enabled
	timeouts    model.TimeoutConfig
	now         func() time.Time
}

// New creates a pipeline from explicit collaborators
func New(cfg *model.Config, deps Deps) (*Pipeline, error) {
	if deps.Extractor == nil || deps.Evidence == nil || deps.Synthesizer == nil {
		return nil, model.NewError(model.KindMisconfigured, "pipeline requires an extractor, an evidence fetcher and a synthesizer", nil)
	}

	p := &Pipeline{
		extractor:   deps.Extractor,
		evidence:    deps.Evidence,
		aggregator:  score.NewAggregator(),
		synthesizer: deps.Synthesizer,
		pages:       deps.Pages,
		store:       deps.Store,
		cache:       deps.Cache,
		timeouts:    cfg.Timeouts,
		now:         time.Now,
	}
	if cfg.FactCheck.SplitClaims {
		p.splitter = extract.NewClaimSplitter(cfg.FactCheck.MaxClaims)
	}
	return p, nil
}

// ModelAvailable reports whether the generative model backend is reachable
func (p *Pipeline) ModelAvailable(ctx context.Context) bool {
	return p.synthesizer.Available(ctx)
}

// Close releases connections held by the evidence cache
func (p *Pipeline) Close() error {
	return cache.Close(p.cache)
}

// Analyze runs one input through every stage. Any failure aborts the run;
// no partial result is returned.
func (p *Pipeline) Analyze(ctx context.Context, input model.RawInput) (analysis *model.Analysis, err error) {
	start := time.Now()
	defer func() {
		metrics.AnalysesTotal.WithLabelValues(string(input.Kind), metrics.Outcome(err)).Inc()
		metrics.ObserveStage("total", start)
		if err != nil {
			slog.Info("analysis failed", "input_kind", input.Kind, "error", err, "duration", time.Since(start))
		}
	}()

	doc, err := p.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	claims, err := p.fetchEvidence(ctx, doc.Text)
	if err != nil {
		return nil, err
	}

	summary := p.aggregator.Aggregate(claims)
	slog.Debug("evidence aggregated",
		"claims", len(claims), "reviews", model.ReviewCount(claims),
		"is_factual", summary.IsFactual, "confidence", summary.Confidence)

	raw, err := p.synthesize(ctx, doc.Text, summary, claims)
	if err != nil {
		return nil, err
	}

	normStart := time.Now()
	result, err := normalize.Normalize(raw)
	metrics.ObserveStage("normalize", normStart)
	if err != nil {
		slog.Debug("model output rejected", "raw_chars", len(raw))
		return nil, err
	}

	analysis = &model.Analysis{
		InputKind: input.Kind,
		Document:  doc,
		Claims:    claims,
		Evidence:  summary,
		Result:    result,
		Provider:  p.synthesizer.ProviderName(),
		Model:     p.synthesizer.Model(),
		CreatedAt: p.now().UTC(),
	}

	if p.store != nil {
		id, err := p.store.Save(ctx, *analysis, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
		analysis.ID = id
	}

	metrics.VerdictConfidence.Observe(result.Confidence)
	slog.Info("analysis complete",
		"input_kind", input.Kind, "is_likely_true", result.IsLikelyTrue,
		"confidence", result.Confidence, "duration", time.Since(start))

	return analysis, nil
}

// resolve produces the plain text for any input variant
func (p *Pipeline) resolve(ctx context.Context, input model.RawInput) (model.ExtractedDocument, error) {
	if err := model.ContextError(ctx, "extraction"); err != nil {
		return model.ExtractedDocument{}, err
	}

	switch input.Kind {
	case model.InputText:
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return model.ExtractedDocument{}, model.NewError(model.KindExtractionFailed, "submitted text is empty", nil)
		}
		return model.ExtractedDocument{Text: text, SourceMediaType: extract.MediaText}, nil

	case model.InputFile:
		stageCtx, cancel := withStageTimeout(ctx, p.timeouts.Extract)
		defer cancel()

		stageStart := time.Now()
		doc, err := p.extractor.Extract(stageCtx, input.Bytes, input.MediaType)
		metrics.ObserveStage("extract", stageStart)
		if err != nil {
			return model.ExtractedDocument{}, stageError(stageCtx, "extraction", err)
		}
		return doc, nil

	case model.InputURL:
		return p.resolveURL(ctx, input.URL)

	default:
		return model.ExtractedDocument{}, model.NewError(model.KindUnsupportedFormat, fmt.Sprintf("unknown input kind %q", input.Kind), nil)
	}
}

func (p *Pipeline) resolveURL(ctx context.Context, rawURL string) (model.ExtractedDocument, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return model.ExtractedDocument{}, model.NewError(model.KindUnsupportedFormat, "only http and https URLs are supported", err)
	}
	if p.pages == nil {
		return model.ExtractedDocument{}, model.NewError(model.KindMisconfigured, "URL inputs require a page fetcher", nil)
	}

	stageCtx, cancel := withStageTimeout(ctx, p.timeouts.Extract)
	defer cancel()

	stageStart := time.Now()
	defer metrics.ObserveStage("fetch_page", stageStart)

	page, err := p.pages.FetchWithRetry(stageCtx, rawURL)
	if err != nil {
		if ctxErr := model.ContextError(stageCtx, "page fetch"); ctxErr != nil {
			return model.ExtractedDocument{}, ctxErr
		}
		return model.ExtractedDocument{}, model.NewError(model.KindExtractionFailed, "fetch "+rawURL, err)
	}

	// Linked documents (PDF, DOCX, images) go through the regular decoders
	if !isHTML(page.ContentType) {
		doc, err := p.extractor.Extract(stageCtx, []byte(page.HTML), page.ContentType)
		if err != nil {
			return model.ExtractedDocument{}, stageError(stageCtx, "extraction", err)
		}
		doc.SourceURL = page.FinalURL
		return doc, nil
	}

	title, text := extract.ArticleText(page.HTML, page.FinalURL)
	if strings.TrimSpace(text) == "" {
		return model.ExtractedDocument{}, model.NewError(model.KindExtractionFailed, "page has no readable text", nil)
	}
	if title == "" {
		title = page.Subject
	}

	return model.ExtractedDocument{
		Text:            strings.TrimSpace(text),
		SourceMediaType: extract.MediaHTML,
		SourceURL:       page.FinalURL,
		Title:           title,
	}, nil
}

// fetchEvidence queries the claims index with the whole text, or with each
// check-worthy sentence when claim splitting is enabled
func (p *Pipeline) fetchEvidence(ctx context.Context, text string) ([]model.Claim, error) {
	stageCtx, cancel := withStageTimeout(ctx, p.timeouts.Evidence)
	defer cancel()

	stageStart := time.Now()
	defer metrics.ObserveStage("evidence", stageStart)

	var (
		claims []model.Claim
		err    error
	)
	if p.splitter != nil {
		queries := p.splitter.Split(text)
		slog.Debug("querying claims index per sentence", "queries", len(queries))
		claims, err = p.evidence.FetchAll(stageCtx, queries)
	} else {
		claims, err = p.evidence.Fetch(stageCtx, text)
	}
	if err != nil {
		return nil, stageError(stageCtx, "evidence fetch", err)
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return claims, nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string, summary model.EvidenceSummary, claims []model.Claim) (string, error) {
	stageCtx, cancel := withStageTimeout(ctx, p.timeouts.Synthesis)
	defer cancel()

	stageStart := time.Now()
	defer metrics.ObserveStage("synthesis", stageStart)

	raw, err := p.synthesizer.Synthesize(stageCtx, text, summary, claims)
	if err != nil {
		return "", stageError(stageCtx, "synthesis", err)
	}
	return raw, nil
}

// withStageTimeout bounds a stage; zero leaves only the caller's deadline
func withStageTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// stageError reports an expired stage as Timeout regardless of how the
// collaborator surfaced it
func stageError(stageCtx context.Context, stage string, err error) error {
	if kind, ok := model.KindOf(err); ok && kind == model.KindTimeout {
		return err
	}
	if ctxErr := model.ContextError(stageCtx, stage); ctxErr != nil {
		return ctxErr
	}
	return err
}
