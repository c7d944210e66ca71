package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/util"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// now is the clock used for staleness (injectable for tests)
var now = time.Now

// ValidatorOptions configures a Validator
type ValidatorOptions struct {
	Timeout    time.Duration
	MaxWorkers int
	UserAgent  string
	Authority  *model.AuthorityConfig
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// Validator checks source links concurrently
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	authority  *AuthorityClassifier
}

// NewValidator creates a new validator
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = model.DefaultConfig().HTTP.UserAgent
	}

	proxyFunc := util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)

	return &Validator{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: proxyFunc,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: opts.MaxWorkers,
		userAgent:  opts.UserAgent,
		authority:  NewAuthorityClassifier(opts.Authority),
	}
}

// Authority returns the classifier used to tier checked links
func (v *Validator) Authority() *AuthorityClassifier {
	return v.authority
}

// Check checks all URLs concurrently. Results are in input order.
func (v *Validator) Check(ctx context.Context, urls []string) []model.LinkCheck {
	results := make([]model.LinkCheck, len(urls))
	if len(urls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.LinkCheck{
					URL:       rawURL,
					Authority: v.authority.Classify(rawURL),
					Error:     "context cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = v.checkWithRetry(ctx, rawURL)
		}(i, u)
	}

	wg.Wait()
	return results
}

// checkSingle issues one HEAD request
func (v *Validator) checkSingle(ctx context.Context, rawURL string) model.LinkCheck {
	result := model.LinkCheck{
		URL:       rawURL,
		Authority: v.authority.Classify(rawURL),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.IsDead = true
		return result
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.IsAccessible = true
	} else if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		result.IsDead = true
	}

	if resp.Request.URL.String() != rawURL {
		result.RedirectURL = resp.Request.URL.String()
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			result.LastModified = &t

			ageDays := int(now().Sub(t).Hours() / 24)
			result.Age = &ageDays

			if ageDays > 365 {
				result.IsStale = true
			}
			if ageDays > 365*3 {
				result.IsVeryStale = true
			}
		}
	}

	return result
}

// checkWithRetry retries transient failures with exponential backoff
func (v *Validator) checkWithRetry(ctx context.Context, rawURL string) model.LinkCheck {
	var result model.LinkCheck
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkSingle(ctx, rawURL)
		if !isRetryableCheck(result) {
			return result
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			validateSleepFunc(backoff)
		}
	}
	return result
}

// isRetryableCheck returns true for results that indicate transient failures
func isRetryableCheck(result model.LinkCheck) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" && isRetryableNetworkError(result.Error) {
		return true
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
