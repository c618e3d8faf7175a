package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/david/auction-analyzer/internal/config"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves a URL body. Adapters depend on this interface so tests
// can substitute canned responses.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error)
	Post(ctx context.Context, rawURL string, header http.Header, body []byte) ([]byte, error)
}

// RateLimitedFetcher spaces requests per host and retries transient
// failures with exponential backoff. Auction sites and free-tier APIs are
// both unforgiving about request rates, so every adapter goes through this.
type RateLimitedFetcher struct {
	client *http.Client
	config config.FetchConfig

	mu       sync.Mutex
	limiters map[string]*time.Ticker // per host
}

func NewRateLimitedFetcher(fc config.FetchConfig) *RateLimitedFetcher {
	if fc.TimeoutSeconds == 0 {
		fc.TimeoutSeconds = 30
	}
	if fc.MaxRetries == 0 {
		fc.MaxRetries = 2
	}
	if fc.RateLimitRPS == 0 {
		fc.RateLimitRPS = 1.0
	}

	return &RateLimitedFetcher{
		client: &http.Client{
			Timeout: time.Duration(fc.TimeoutSeconds) * time.Second,
		},
		config:   fc,
		limiters: make(map[string]*time.Ticker),
	}
}

func (f *RateLimitedFetcher) wait(host string) {
	f.mu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		interval := time.Duration(float64(time.Second) / f.config.RateLimitRPS)
		if interval <= 0 {
			interval = time.Second
		}
		limiter = time.NewTicker(interval)
		f.limiters[host] = limiter
		f.mu.Unlock()
		return // first request to a host goes through immediately
	}
	f.mu.Unlock()
	<-limiter.C
}

func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Get fetches rawURL, honoring the per-host rate limit and retrying
// transient failures. Extra headers override the defaults.
func (f *RateLimitedFetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	return f.do(ctx, http.MethodGet, rawURL, header, nil)
}

// Post sends a request body, typically JSON, with the same rate limiting and
// retry behavior as Get.
func (f *RateLimitedFetcher) Post(ctx context.Context, rawURL string, header http.Header, body []byte) ([]byte, error) {
	return f.do(ctx, http.MethodPost, rawURL, header, body)
}

func (f *RateLimitedFetcher) do(ctx context.Context, method, rawURL string, header http.Header, reqBody []byte) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	f.wait(u.Host)

	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Backoff 0.5s, 1s, 2s plus jitter
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "application/json, text/html;q=0.9, text/csv;q=0.9, */*;q=0.8")
		if f.config.AcceptLanguage != "" {
			req.Header.Set("Accept-Language", f.config.AcceptLanguage)
		}
		for k, vs := range header {
			req.Header[k] = vs
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}
			return body, nil
		}

		resp.Body.Close()
		if shouldRetry(nil, resp.StatusCode) {
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			continue
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
