package pipeline

import (
	"context"
	"log/slog"

	"github.com/ppiankov/truthgauge/internal/cache"
	"github.com/ppiankov/truthgauge/internal/extract"
	"github.com/ppiankov/truthgauge/internal/factcheck"
	"github.com/ppiankov/truthgauge/internal/llm"
	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/worker"
)

// Build validates cfg and assembles a pipeline backed by the real services.
// store may be nil when analyses are not persisted.
func Build(ctx context.Context, cfg *model.Config, store Store) (p *Pipeline, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	evidenceCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, model.NewError(model.KindMisconfigured, "evidence cache", err)
	}
	defer func() {
		if err != nil {
			_ = cache.Close(evidenceCache)
		}
	}()

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	evidence, err := factcheck.NewClient(ctx, cfg.FactCheck, cfg.Retry, cfg.Concurrency.EvidenceFanout, factcheck.Options{
		Cache:    evidenceCache,
		CacheTTL: cfg.Cache.TTL,
		Limiter:  limiter,
	})
	if err != nil {
		return nil, err
	}

	var ocr extract.OCR
	if cfg.OCR.APIKey != "" {
		client, err := extract.NewOCRSpaceClient(cfg.OCR, cfg.Timeouts.Extract)
		if err != nil {
			return nil, err
		}
		ocr = client
	} else {
		slog.Warn("no OCR API key configured, image uploads will fail extraction")
	}

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, err
	}
	synthesizer, err := llm.NewSynthesizer(provider, cfg.Retry)
	if err != nil {
		return nil, err
	}

	pages := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	pages.SetRetry(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay)
	pages.SetLimiter(limiter)
	if cfg.HTTP.RespectRobots {
		pages.RespectRobots()
	}

	slog.Debug("pipeline assembled",
		"provider", provider.Name(), "model", provider.Model(),
		"cache", cfg.Cache.Enabled, "cache_backend", cfg.Cache.Backend,
		"split_claims", cfg.FactCheck.SplitClaims, "store", store != nil)

	return New(cfg, Deps{
		Extractor:   extract.NewExtractor(ocr),
		Evidence:    evidence,
		Synthesizer: synthesizer,
		Pages:       pages,
		Store:       store,
		Cache:       evidenceCache,
	})
}
