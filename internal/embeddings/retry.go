package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// DefaultRetries is how many times a rate-limited request is retried.
const DefaultRetries = 3

// RateLimitError reports that the embedding service rejected a request with
// HTTP 429. RetryAfter is zero when the service gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return "embedding rate limited"
	}
	return "embedding rate limited: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter reports whether err is a rate-limit rejection and, if the
// service said so, how long to wait.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return 0, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return 0, true
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return 0, true
	}
	return 0, false
}

// rateLimitTransport turns HTTP 429 responses into a RateLimitError that
// carries the Retry-After hint, which the SDK errors drop.
type rateLimitTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	wait := parseRetryAfter(resp.Header.Get("Retry-After"), t.now())
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
	return nil, &RateLimitError{
		RetryAfter: wait,
		Err:        fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status),
	}
}

// rateLimitClient returns a copy of base whose transport reports 429s as
// RateLimitError. A nil base means a default client.
func rateLimitClient(base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.Transport = &rateLimitTransport{base: rt, now: time.Now}
	return c
}

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Anything else, or a time in the past, yields zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// Retrying wraps an Embedder and retries rate-limited requests up to a
// fixed number of times. It waits the service's Retry-After when known,
// otherwise attempt seconds. Other errors are returned immediately.
type Retrying struct {
	inner   Embedder
	retries int
	sleep   func(context.Context, time.Duration) error
	onRetry func(attempt int, wait time.Duration)
}

// RetryOption customises a Retrying embedder.
type RetryOption func(*Retrying)

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) RetryOption {
	return func(r *Retrying) { r.retries = n }
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, wait time.Duration)) RetryOption {
	return func(r *Retrying) { r.onRetry = fn }
}

// withSleep replaces the wait function; tests use it to avoid real sleeps.
func withSleep(fn func(context.Context, time.Duration) error) RetryOption {
	return func(r *Retrying) { r.sleep = fn }
}

// NewRetrying wraps inner with rate-limit retries.
func NewRetrying(inner Embedder, opts ...RetryOption) *Retrying {
	r := &Retrying{inner: inner, retries: DefaultRetries, sleep: sleepCtx}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) Name() string    { return r.inner.Name() }
func (r *Retrying) Dimensions() int { return r.inner.Dimensions() }

// Embed calls the wrapped embedder, retrying on rate limiting.
func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 1; ; attempt++ {
		out, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return out, nil
		}
		wait, limited := RetryAfter(err)
		if !limited || attempt > r.retries {
			return nil, err
		}
		if wait <= 0 {
			wait = time.Duration(attempt) * time.Second
		}
		if r.onRetry != nil {
			r.onRetry(attempt, wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("waiting to retry embedding: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
