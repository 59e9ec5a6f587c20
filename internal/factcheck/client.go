// Package factcheck queries the Google Fact Check Tools claims index.
package factcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	factchecktools "google.golang.org/api/factchecktools/v1alpha1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ppiankov/truthgauge/internal/cache"
	"github.com/ppiankov/truthgauge/internal/metrics"
	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/worker"
)

// DefaultEndpoint is the public claims index base URL
const DefaultEndpoint = "https://factchecktools.googleapis.com/"

// searchSleepFunc is replaced in tests to skip backoff delays
var searchSleepFunc = time.Sleep

// Client fetches claim reviews for free-text queries
type Client struct {
	service      *factchecktools.Service
	apiKey       string
	host         string
	languageCode string
	pageSize     int64
	maxAttempts  int
	baseDelay    time.Duration
	fanout       int
	cache        cache.Cache
	cacheTTL     time.Duration
	limiter      *worker.Limiter
}

// Options holds optional collaborators
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Limiter  *worker.Limiter
}

// NewClient builds a claims index client. A missing API key is a
// configuration error reported here rather than on first use.
func NewClient(ctx context.Context, cfg model.FactCheckConfig, retry model.RetryConfig, fanout int, opts Options) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, model.NewError(model.KindMisconfigured, "fact check API key is required", nil)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, model.NewError(model.KindMisconfigured, "invalid fact check endpoint", err)
	}

	svc, err := factchecktools.NewService(ctx,
		option.WithAPIKey(cfg.APIKey),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, model.NewError(model.KindMisconfigured, "create fact check service", err)
	}

	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	pageSize := int64(cfg.PageSize)
	if pageSize <= 0 {
		pageSize = 10
	}
	if fanout <= 0 {
		fanout = 1
	}

	return &Client{
		service:      svc,
		apiKey:       cfg.APIKey,
		host:         u.Host,
		languageCode: cfg.LanguageCode,
		pageSize:     pageSize,
		maxAttempts:  maxAttempts,
		baseDelay:    retry.BaseDelay,
		fanout:       fanout,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		limiter:      opts.Limiter,
	}, nil
}

// Fetch returns the claims matching query. An empty result is not an error.
// Transient failures are retried with exponential backoff; exhaustion or a
// non-retryable status yields EvidenceServiceUnavailable.
func (c *Client) Fetch(ctx context.Context, query string) ([]model.Claim, error) {
	if c == nil || c.apiKey == "" {
		return nil, model.NewError(model.KindMisconfigured, "fact check API key is required", nil)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Claim{}, nil
	}

	key := cache.CacheKey("factcheck", c.languageCode+"|"+query)
	if c.cache != nil {
		if data, ok := c.cache.Get(ctx, key); ok {
			var claims []model.Claim
			if err := json.Unmarshal(data, &claims); err == nil {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				slog.Debug("fact check cache hit", "query_chars", len(query), "claims", len(claims))
				return claims, nil
			}
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	claims, err := c.searchWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(claims); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
				slog.Warn("fact check cache write failed", "error", err)
			}
		}
	}
	return claims, nil
}

// FetchAll queries each claim concurrently, bounded by the configured fanout.
// Results are joined in query order; the first failure cancels the rest.
func (c *Client) FetchAll(ctx context.Context, queries []string) ([]model.Claim, error) {
	results := make([][]model.Claim, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, q := range queries {
		g.Go(func() error {
			claims, err := c.Fetch(gctx, q)
			if err != nil {
				return err
			}
			results[i] = claims
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []model.Claim{}
	for _, claims := range results {
		all = append(all, claims...)
	}
	return all, nil
}

func (c *Client) searchWithRetry(ctx context.Context, query string) ([]model.Claim, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := model.ContextError(ctx, "evidence fetch"); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.WaitHost(ctx, c.host); err != nil {
				return nil, model.NewError(model.KindTimeout, "evidence fetch aborted", err)
			}
		}

		claims, err := c.search(ctx, query)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues("factcheck", "ok").Inc()
			return claims, nil
		}
		metrics.UpstreamRequests.WithLabelValues("factcheck", "error").Inc()
		lastErr = err

		if ctxErr := model.ContextError(ctx, "evidence fetch"); ctxErr != nil {
			return nil, ctxErr
		}
		if !isRetryableSearchError(err) {
			break
		}
		if attempt < c.maxAttempts {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("fact check request failed, retrying",
				"attempt", attempt, "max_attempts", c.maxAttempts, "delay", delay, "error", err)
			searchSleepFunc(delay)
		}
	}
	return nil, model.NewError(model.KindEvidenceServiceUnavailable, "claims index request failed", lastErr)
}

func (c *Client) search(ctx context.Context, query string) ([]model.Claim, error) {
	call := c.service.Claims.Search().Query(query).PageSize(c.pageSize).Context(ctx)
	if c.languageCode != "" {
		call = call.LanguageCode(c.languageCode)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, err
	}
	return convertClaims(resp.Claims), nil
}

// convertClaims maps the API response into the domain model
func convertClaims(in []*factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1Claim) []model.Claim {
	claims := make([]model.Claim, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		claim := model.Claim{
			Text:      c.Text,
			Claimant:  c.Claimant,
			ClaimDate: c.ClaimDate,
			Reviews:   make([]model.ClaimReview, 0, len(c.ClaimReview)),
		}
		for _, r := range c.ClaimReview {
			if r == nil {
				continue
			}
			review := model.ClaimReview{
				ClaimText:     c.Text,
				Claimant:      c.Claimant,
				ClaimDate:     c.ClaimDate,
				ReviewURL:     r.Url,
				ReviewTitle:   r.Title,
				ReviewDate:    r.ReviewDate,
				TextualRating: r.TextualRating,
				LanguageCode:  r.LanguageCode,
			}
			if r.Publisher != nil {
				review.PublisherName = r.Publisher.Name
				review.PublisherSite = r.Publisher.Site
			}
			claim.Reviews = append(claim.Reviews, review)
		}
		claims = append(claims, claim)
	}
	return claims
}

// isRetryableSearchError reports whether a failed search is worth retrying:
// 429, 5xx and network errors are transient, other statuses are not
func isRetryableSearchError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset")
}

// StatusCode extracts the HTTP status of a failed search, or 0
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
