package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Attempts:    3,
		BackoffBase: time.Millisecond,
		DelayMin:    0,
		DelayMax:    0,
		Timeout:     time.Second,
	}
}

// stubResult is one scripted response of a sequence transport.
type stubResult struct {
	status int
	body   string
	header http.Header
	err    error
}

// seqTransport replays a scripted sequence of responses. The last entry
// repeats once the script runs out.
type seqTransport struct {
	mu      sync.Mutex
	results []stubResult
	calls   int
}

func (t *seqTransport) Do(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	idx := t.calls
	t.calls++
	t.mu.Unlock()

	if idx >= len(t.results) {
		idx = len(t.results) - 1
	}
	r := t.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	header := r.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func (t *seqTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func TestFetchSuccess(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusOK, body: "<html>ok</html>"},
	}}
	f := New(transport, testConfig(), testLogger())

	body, err := f.Fetch(context.Background(), "https://example.com/search")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := string(body); got != "<html>ok</html>" {
		t.Errorf("body = %q, want %q", got, "<html>ok</html>")
	}
	if got := transport.callCount(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusInternalServerError},
		{status: http.StatusBadGateway},
		{status: http.StatusOK, body: "recovered"},
	}}
	f := New(transport, testConfig(), testLogger())

	body, err := f.Fetch(context.Background(), "https://example.com/search")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := string(body); got != "recovered" {
		t.Errorf("body = %q, want %q", got, "recovered")
	}
	if got := transport.callCount(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusServiceUnavailable},
	}}
	f := New(transport, testConfig(), testLogger())

	_, err := f.Fetch(context.Background(), "https://example.com/search")
	if err == nil {
		t.Fatal("Fetch() error = nil, want status error")
	}
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a *StatusError", err)
	}
	if serr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", serr.Status, http.StatusServiceUnavailable)
	}
	if got := transport.callCount(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusTooManyRequests, header: http.Header{"Retry-After": []string{"0"}}},
		{status: http.StatusOK, body: "after limit"},
	}}
	f := New(transport, testConfig(), testLogger())

	body, err := f.Fetch(context.Background(), "https://example.com/search")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := string(body); got != "after limit" {
		t.Errorf("body = %q, want %q", got, "after limit")
	}
	if got := transport.callCount(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetchClientErrorFailsFast(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusNotFound},
	}}
	f := New(transport, testConfig(), testLogger())

	_, err := f.Fetch(context.Background(), "https://example.com/search")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a *StatusError", err)
	}
	if serr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", serr.Status)
	}
	if got := transport.callCount(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestFetchClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		doErr   error
		wantErr error
	}{
		{
			name:    "connection refused",
			doErr:   errors.New("dial tcp: connection refused"),
			wantErr: ErrTransport,
		},
		{
			name:    "deadline exceeded",
			doErr:   context.DeadlineExceeded,
			wantErr: ErrTimeout,
		},
		{
			name:    "net timeout",
			doErr:   timeoutError{},
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &seqTransport{results: []stubResult{{err: tt.doErr}}}
			f := New(transport, testConfig(), testLogger())

			_, err := f.Fetch(context.Background(), "https://example.com/search")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want wrapped %v", err, tt.wantErr)
			}
			if got := transport.callCount(); got != 3 {
				t.Errorf("calls = %d, want 3 (transport errors retry)", got)
			}
		})
	}
}

func TestFetchCancelledContext(t *testing.T) {
	transport := &seqTransport{results: []stubResult{
		{status: http.StatusInternalServerError},
	}}
	cfg := testConfig()
	cfg.BackoffBase = time.Minute // would stall without cancellation
	f := New(transport, cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, "https://example.com/search")
	if err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Fetch() took %v, cancellation did not interrupt backoff", elapsed)
	}
}

func TestRetryAfter(t *testing.T) {
	fallback := 4 * time.Second
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"delta seconds", "7", 7 * time.Second},
		{"zero", "0", 0},
		{"missing", "", fallback},
		{"http date", "Wed, 21 Oct 2026 07:28:00 GMT", fallback},
		{"negative", "-3", fallback},
		{"junk", "soon", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			if got := retryAfter(resp, fallback); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}
