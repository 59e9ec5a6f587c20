package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/truthgauge/internal/util"
	"github.com/ppiankov/truthgauge/internal/worker"
)

// fetchSleepFunc is replaced in tests to skip backoff delays
var fetchSleepFunc = time.Sleep

// errRobotsDisallowed marks pages excluded by robots.txt
var errRobotsDisallowed = errors.New("disallowed by robots.txt")

// Fetcher fetches HTML content from URLs
type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	maxBytes    int64
	maxAttempts int
	baseDelay   time.Duration
	robots      *util.RobotsChecker
	limiter     *worker.Limiter
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: util.NewTransport(util.TransportOptions{
				HTTPProxy:   httpProxy,
				HTTPSProxy:  httpsProxy,
				NoProxy:     noProxy,
				InsecureTLS: insecureTLS,
			}),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent:   userAgent,
		maxBytes:    maxBytes,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// SetRetry overrides the retry budget
func (f *Fetcher) SetRetry(maxAttempts int, baseDelay time.Duration) {
	if maxAttempts > 0 {
		f.maxAttempts = maxAttempts
	}
	f.baseDelay = baseDelay
}

// RespectRobots enables robots.txt checks through the fetcher's own client
func (f *Fetcher) RespectRobots() {
	f.robots = util.NewRobotsChecker(f.httpClient, f.userAgent, f.httpClient.Timeout)
}

// SetLimiter enables per-host rate limiting
func (f *Fetcher) SetLimiter(l *worker.Limiter) {
	f.limiter = l
}

// FetchResult contains the fetched page and response metadata
type FetchResult struct {
	HTML        string
	ContentType string
	StatusCode  int
	FinalURL    string
	Subject     string
}

// Fetch retrieves a page once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    finalURL,
		Subject:     extractSubject(finalURL),
	}, nil
}

// FetchWithRetry checks robots.txt and the rate limit, then fetches the page
// retrying transient failures with exponential backoff.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var crawlDelay time.Duration
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, errRobotsDisallowed)
		}
		crawlDelay = delay
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableFetchError(err) {
			return nil, err
		}
		if attempt < f.maxAttempts {
			delay := f.baseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("page fetch failed, retrying", "url", rawURL, "attempt", attempt, "delay", delay, "error", err)
			fetchSleepFunc(delay)
		}
	}

	return nil, lastErr
}

// isRetryableFetchError reports whether a fetch failure is transient
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.HasPrefix(msg, "unexpected status: ") {
		var code int
		if _, scanErr := fmt.Sscanf(msg, "unexpected status: %d", &code); scanErr != nil {
			return false
		}
		return code == http.StatusTooManyRequests || code >= 500
	}

	// Transport-level failures (refused, reset, timeouts) are transient
	return strings.HasPrefix(msg, "fetch: ")
}

// isHTML reports whether a response content type carries markup
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// extractSubject extracts a human-readable subject from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	// De-slugify
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")

	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}
