package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/provenance/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	validateSleepFunc = func(d time.Duration) {}
}

func newTestValidator(auth *model.AuthorityConfig) *Validator {
	return NewValidator(ValidatorOptions{Timeout: 5 * time.Second, MaxWorkers: 20, Authority: auth})
}

func TestValidator_CheckSingle_Success(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkSingle(context.Background(), server.URL)

	if !result.IsAccessible {
		t.Error("Expected link to be accessible")
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", result.StatusCode)
	}
	if result.IsDead {
		t.Error("Expected link not to be dead")
	}
	if result.LastModified == nil {
		t.Error("Expected Last-Modified to be parsed")
	}
	if ua != model.DefaultConfig().HTTP.UserAgent {
		t.Errorf("Expected default user agent, got %q", ua)
	}
}

func TestValidator_CheckSingle_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkSingle(context.Background(), server.URL)

	if result.IsAccessible {
		t.Error("Expected 404 link not to be accessible")
	}
	if !result.IsDead {
		t.Error("Expected 404 link to be marked as dead")
	}
}

func TestValidator_CheckSingle_Redirect(t *testing.T) {
	finalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer finalServer.Close()

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalServer.URL, http.StatusMovedPermanently)
	}))
	defer redirectServer.Close()

	result := newTestValidator(nil).checkSingle(context.Background(), redirectServer.URL)

	if !result.IsAccessible {
		t.Error("Expected redirected link to be accessible")
	}
	if result.RedirectURL != finalServer.URL {
		t.Errorf("Expected redirect to %s, got %s", finalServer.URL, result.RedirectURL)
	}
}

func TestValidator_CheckSingle_Staleness(t *testing.T) {
	tests := []struct {
		lastModified string
		expectStale  bool
		expectVery   bool
		desc         string
	}{
		{time.Now().Add(-400 * 24 * time.Hour).UTC().Format(http.TimeFormat), true, false, "13-month-old page is stale"},
		{time.Now().Add(-4 * 365 * 24 * time.Hour).UTC().Format(http.TimeFormat), true, true, "4-year-old page is very stale"},
		{time.Now().Add(-30 * 24 * time.Hour).UTC().Format(http.TimeFormat), false, false, "30-day-old page is fresh"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Last-Modified", tt.lastModified)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			result := newTestValidator(nil).checkSingle(context.Background(), server.URL)

			if result.IsStale != tt.expectStale {
				t.Errorf("Expected IsStale=%v, got %v", tt.expectStale, result.IsStale)
			}
			if result.IsVeryStale != tt.expectVery {
				t.Errorf("Expected IsVeryStale=%v, got %v", tt.expectVery, result.IsVeryStale)
			}
			if result.Age == nil {
				t.Error("Expected age to be calculated")
			}
		})
	}
}

func TestValidator_Check_Concurrency(t *testing.T) {
	serverCount := 10
	urls := make([]string, serverCount)
	for i := 0; i < serverCount; i++ {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		urls[i] = server.URL
	}

	start := time.Now()
	results := newTestValidator(nil).Check(context.Background(), urls)
	duration := time.Since(start)

	if len(results) != serverCount {
		t.Fatalf("Expected %d results, got %d", serverCount, len(results))
	}
	if duration > 500*time.Millisecond {
		t.Errorf("Check took too long (%v), concurrent execution may not be working", duration)
	}
	for i, result := range results {
		if !result.IsAccessible {
			t.Errorf("Result %d: expected accessible", i)
		}
		if result.URL != urls[i] {
			t.Errorf("Result %d: expected input order, got %s", i, result.URL)
		}
	}
}

func TestValidator_Check_Empty(t *testing.T) {
	results := newTestValidator(nil).Check(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestValidator_Check_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := NewValidator(ValidatorOptions{Timeout: 10 * time.Second}).Check(ctx, []string{server.URL})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].IsAccessible {
		t.Error("Expected link not to be accessible after context cancellation")
	}
}

func TestValidator_Check_MixedResults(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer gone.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	results := newTestValidator(nil).Check(context.Background(), []string{ok.URL, gone.URL, broken.URL})

	if !results[0].IsAccessible {
		t.Error("Expected first link to be accessible")
	}
	if results[1].IsAccessible || !results[1].IsDead {
		t.Error("Expected 410 link to be dead")
	}
	if results[2].IsAccessible {
		t.Error("Expected 500 link not to be accessible")
	}
	if results[2].IsDead {
		t.Error("Expected 500 link not to be marked dead")
	}
}

func TestValidator_AuthorityClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := &model.AuthorityConfig{PrimaryDomains: []string{"127.0.0.1"}}

	result := newTestValidator(config).checkSingle(context.Background(), server.URL)

	if result.Authority != model.TierPrimary {
		t.Errorf("Expected authority tier to be primary, got %v", result.Authority)
	}
}

func TestNewValidator_Defaults(t *testing.T) {
	validator := NewValidator(ValidatorOptions{})

	if validator.maxWorkers != 20 {
		t.Errorf("Expected default max workers to be 20, got %d", validator.maxWorkers)
	}
	if validator.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout 10s, got %v", validator.httpClient.Timeout)
	}
}

func TestCheckWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkWithRetry(context.Background(), server.URL)

	if !result.IsAccessible {
		t.Error("Expected accessible after retry")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkWithRetry(context.Background(), server.URL)

	if !result.IsDead {
		t.Error("Expected dead for 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkWithRetry(context.Background(), server.URL)

	if result.IsAccessible {
		t.Error("Expected not accessible after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(nil).checkWithRetry(context.Background(), server.URL)

	if !result.IsAccessible {
		t.Error("Expected accessible after 429 retry")
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestIsRetryableCheck(t *testing.T) {
	tests := []struct {
		desc      string
		result    model.LinkCheck
		retryable bool
	}{
		{"200 OK", model.LinkCheck{StatusCode: 200, IsAccessible: true}, false},
		{"404 Not Found", model.LinkCheck{StatusCode: 404, IsDead: true}, false},
		{"500 Server Error", model.LinkCheck{StatusCode: 500}, true},
		{"503 Service Unavailable", model.LinkCheck{StatusCode: 503}, true},
		{"429 Too Many Requests", model.LinkCheck{StatusCode: 429}, true},
		{"timeout error", model.LinkCheck{Error: "request failed: timeout"}, true},
		{"connection refused", model.LinkCheck{Error: "request failed: connection refused"}, true},
		{"create request error", model.LinkCheck{Error: "create request: invalid URL"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := isRetryableCheck(tt.result); got != tt.retryable {
				t.Errorf("isRetryableCheck(%s) = %v, want %v", tt.desc, got, tt.retryable)
			}
		})
	}
}
