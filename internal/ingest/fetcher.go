// Package ingest fetches source pages and images and turns pages into raw
// documents and media candidates.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/util"
	"github.com/ppiankov/provenance/internal/worker"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

var (
	// ErrDisallowed is returned when robots.txt forbids a URL
	ErrDisallowed = errors.New("ingest: disallowed by robots.txt")
	// ErrTooLarge is returned when a binary body exceeds the size limit
	ErrTooLarge = errors.New("ingest: body exceeds size limit")
)

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	HTTPProxy     string
	HTTPSProxy    string
	NoProxy       string
	Limiter       *worker.Limiter // Optional per-domain pacing
}

// OptionsFromConfig builds fetcher options from the runtime configuration
func OptionsFromConfig(cfg *model.Config) FetcherOptions {
	return FetcherOptions{
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		MaxBytes:      cfg.HTTP.MaxBodyBytes,
		RespectRobots: cfg.HTTP.RespectRobots,
		HTTPProxy:     cfg.HTTP.HTTPProxy,
		HTTPSProxy:    cfg.HTTP.HTTPSProxy,
		NoProxy:       cfg.HTTP.NoProxy,
		Limiter:       worker.NewLimiter(cfg.Concurrency.PerDomainRPS, cfg.Concurrency.Burst),
	}
}

// Fetcher fetches pages and images over HTTP
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	limiter    *worker.Limiter
	log        *logger.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(opts FetcherOptions, log *logger.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = model.DefaultConfig().HTTP.UserAgent
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBytes,
		limiter:    opts.Limiter,
		log:        logger.OrNop(log),
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(opts.UserAgent, client)
	}
	return f
}

// FetchResult contains a fetched body and its metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
	StatusCode  int
	Truncated   bool
	FetchedAt   time.Time
}

// FetchWithRetry fetches a page, retrying transient failures with backoff.
// Bodies over the size limit are truncated.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	return f.withRetry(ctx, rawURL, func() (*FetchResult, error) {
		return f.fetch(ctx, rawURL, "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5", false)
	})
}

// FetchBytes fetches an image. Bodies over the size limit fail with ErrTooLarge.
func (f *Fetcher) FetchBytes(ctx context.Context, rawURL string) (*FetchResult, error) {
	return f.withRetry(ctx, rawURL, func() (*FetchResult, error) {
		return f.fetch(ctx, rawURL, "image/avif,image/webp,image/*;q=0.9,*/*;q=0.5", true)
	})
}

func (f *Fetcher) withRetry(ctx context.Context, rawURL string, attempt func() (*FetchResult, error)) (*FetchResult, error) {
	if err := f.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < fetchMaxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			f.log.Debug("retrying fetch", "url", rawURL, "attempt", i+1, "backoff", backoff, "error", lastErr)
			fetchSleepFunc(backoff)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return nil, err
			}
		}

		result, err := attempt()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) checkRobots(ctx context.Context, rawURL string) error {
	if f.robots == nil {
		return nil
	}
	allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}
	if crawlDelay > 0 && f.limiter != nil {
		f.limiter.SetCrawlDelay(rawURL, crawlDelay)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, accept string, strict bool) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	// Read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		if strict {
			return nil, fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, rawURL, f.maxBytes)
		}
		body = body[:f.maxBytes]
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Truncated:   truncated,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// isRetryableFetchError reports whether a fetch failure is worth retrying:
// 5xx, 429 and transport errors are; other statuses and local errors are not.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		code, convErr := strconv.Atoi(strings.Fields(rest + " ")[0])
		return convErr == nil && (code >= 500 || code == http.StatusTooManyRequests)
	}
	return strings.HasPrefix(msg, "fetch: ")
}
