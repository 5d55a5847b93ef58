package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// scriptedEmbedder returns the queued errors in order, then succeeds.
type scriptedEmbedder struct {
	errs  []error
	calls int
}

func (s *scriptedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (s *scriptedEmbedder) Dimensions() int { return 2 }
func (s *scriptedEmbedder) Name() string    { return "scripted" }

type recordedSleeps []time.Duration

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	*r = append(*r, d)
	return nil
}

func TestRetryingRecoversFromRateLimit(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{
		&RateLimitError{RetryAfter: 2 * time.Second},
		&RateLimitError{},
	}}
	var sleeps recordedSleeps
	var retried []int
	r := NewRetrying(inner, withSleep(sleeps.sleep), WithOnRetry(func(attempt int, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	out, err := r.Embed(context.Background(), []string{"grade a"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, recordedSleeps{2 * time.Second, 2 * time.Second}, sleeps)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryingGivesUpAfterRetries(t *testing.T) {
	limited := &RateLimitError{Err: errors.New("slow down")}
	inner := &scriptedEmbedder{errs: []error{limited, limited, limited, limited, limited}}
	var sleeps recordedSleeps
	r := NewRetrying(inner, withSleep(sleeps.sleep))

	_, err := r.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, limited)
	assert.Equal(t, DefaultRetries+1, inner.calls)
	assert.Equal(t, recordedSleeps{time.Second, 2 * time.Second, 3 * time.Second}, sleeps)
}

func TestRetryingFailsFastOnOtherErrors(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{errors.New("bad request")}}
	r := NewRetrying(inner, withSleep(func(context.Context, time.Duration) error {
		t.Fatal("must not sleep")
		return nil
	}))

	_, err := r.Embed(context.Background(), []string{"x"})
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStopsWhenContextEnds(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{&RateLimitError{RetryAfter: time.Hour}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRetrying(inner).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryAfterClassifiesProviderErrors(t *testing.T) {
	_, ok := RetryAfter(fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, ok)
	_, ok = RetryAfter(&openai.RequestError{HTTPStatusCode: 429, Err: errors.New("x")})
	assert.True(t, ok)
	_, ok = RetryAfter(&openai.APIError{HTTPStatusCode: 500})
	assert.False(t, ok)
	_, ok = RetryAfter(errors.New("plain"))
	assert.False(t, ok)
}

func TestOpenAIEmbedderRetriedOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := hits.Add(1); n <= 2 {
			if n == 1 {
				w.Header().Set("Retry-After", "7")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{0.5, float32(i)}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "text-embedding-3-small"})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	var sleeps recordedSleeps
	e := NewRetrying(NewOpenAIEmbedderWithConfig(cfg, ModelTextEmbedding3Small), withSleep(sleeps.sleep))

	out, err := e.Embed(context.Background(), []string{"hepa", "airlock"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{0.5, 1}, out[1])
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, recordedSleeps{7 * time.Second, 2 * time.Second}, sleeps)
	assert.Equal(t, 1536, e.Dimensions())
	assert.Equal(t, "text-embedding-3-small", e.Name())
}

func TestGenAIEmbedderReportsRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "3")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	inner, err := newGenAIEmbedder(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  rateLimitClient(nil),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, DefaultGenAIModel, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	var sleeps recordedSleeps
	_, err = NewRetrying(inner, withSleep(sleeps.sleep)).Embed(context.Background(), []string{"cleanroom"})
	require.Error(t, err)

	wait, limited := RetryAfter(err)
	assert.True(t, limited)
	assert.Equal(t, 3*time.Second, wait)
	assert.Equal(t, int32(DefaultRetries+1), hits.Load())
	assert.Equal(t, recordedSleeps{3 * time.Second, 3 * time.Second, 3 * time.Second}, sleeps)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 12*time.Second, parseRetryAfter("12", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("-4", now))
	assert.Zero(t, parseRetryAfter("soon", now))
	assert.Zero(t, parseRetryAfter("", now))
}

func TestToChromemFunc(t *testing.T) {
	fn := ToChromemFunc(&scriptedEmbedder{})
	v, err := fn(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)

	fn = ToChromemFunc(&scriptedEmbedder{errs: []error{errors.New("down")}})
	_, err = fn(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewGenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewGenAIEmbedder(context.Background(), "", "", "")
	assert.Error(t, err)
}
