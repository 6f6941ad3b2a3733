// Package fetcher performs resilient HTTP page fetches with bounded
// retries, backoff, and rate-limit compliance.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Typed failure categories. Transport failures and timeouts wrap these
// sentinels; HTTP status failures are reported as *StatusError.
var (
	ErrTimeout   = errors.New("request timed out")
	ErrTransport = errors.New("transport error")
)

// StatusError reports a non-200 HTTP response that survived all retries.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// Config tunes the retry and pacing behaviour of a Fetcher.
type Config struct {
	Attempts    int
	BackoffBase time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	Timeout     time.Duration
	UserAgents  []string
}

func (c Config) withDefaults() Config {
	if c.Attempts < 1 {
		c.Attempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	return c
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Fetcher downloads retailer pages.
type Fetcher struct {
	client HTTPClient
	cfg    Config
	log    *slog.Logger
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, cfg Config, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Fetch performs one logical page fetch. A randomized pacing delay precedes
// every attempt. HTTP 429 sleeps for the server-supplied Retry-After before
// retrying; 5xx and transport errors back off exponentially. Other 4xx
// statuses fail immediately. The returned error is one of the typed
// failures once all attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < f.cfg.Attempts; attempt++ {
		if err := f.pacingDelay(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := f.attempt(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, f.cfg.Attempts, lastErr)
}

// attempt runs a single request. The bool result reports whether the
// failure is worth retrying.
func (f *Fetcher) attempt(ctx context.Context, url string, attempt int) ([]byte, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		classified := classifyTransport(err)
		f.log.Debug("fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)
		if serr := f.backoff(ctx, attempt); serr != nil {
			return nil, false, classified
		}
		return nil, true, classified
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, true, fmt.Errorf("read body: %w", errors.Join(ErrTransport, err))
		}
		return body, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		delay := retryAfter(resp, f.cfg.BackoffBase*time.Duration(1<<attempt))
		f.log.Warn("rate limited", "url", url, "retry_after", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, false, &StatusError{Status: resp.StatusCode}
		}
		return nil, true, &StatusError{Status: resp.StatusCode}

	case resp.StatusCode >= 500:
		f.log.Debug("server error", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
		if err := f.backoff(ctx, attempt); err != nil {
			return nil, false, &StatusError{Status: resp.StatusCode}
		}
		return nil, true, &StatusError{Status: resp.StatusCode}

	default:
		return nil, false, &StatusError{Status: resp.StatusCode}
	}
}

func (f *Fetcher) setHeaders(req *http.Request) {
	ua := f.cfg.UserAgents[rand.Intn(len(f.cfg.UserAgents))]
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// pacingDelay sleeps a randomized duration before an attempt to respect
// target-site load. Independent of retry backoff.
func (f *Fetcher) pacingDelay(ctx context.Context) error {
	if f.cfg.DelayMax <= 0 {
		return nil
	}
	d := f.cfg.DelayMin
	if spread := f.cfg.DelayMax - f.cfg.DelayMin; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	return sleepCtx(ctx, d)
}

func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	return sleepCtx(ctx, f.cfg.BackoffBase*time.Duration(1<<attempt))
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// retryAfter parses a Retry-After header in delta-seconds form. HTTP-date
// values and junk fall back to the supplied default.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
