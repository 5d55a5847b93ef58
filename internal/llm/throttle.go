package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ThrottleWindow is the span over which a Throttled provider counts requests.
const ThrottleWindow = time.Minute

// Throttled admits at most a fixed number of requests per ThrottleWindow
// to the wrapped provider. Requests over the limit fail at once with
// ErrRateLimited; nothing is queued.
type Throttled struct {
	provider Provider
	limit    int
	now      func() time.Time

	mu       sync.Mutex
	admitted []time.Time // oldest first, all inside the window
}

// NewThrottled wraps provider with a per-minute request limit. A
// non-positive limit returns the provider unwrapped.
func NewThrottled(provider Provider, limit int) Provider {
	if limit <= 0 {
		return provider
	}
	return &Throttled{provider: provider, limit: limit, now: time.Now}
}

func (t *Throttled) Name() string { return t.provider.Name() }

// Complete forwards req when the window has room.
func (t *Throttled) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if wait, ok := t.admit(); !ok {
		return nil, fmt.Errorf("%w: %d requests per minute, next slot in %s",
			ErrRateLimited, t.limit, wait.Round(time.Second))
	}
	return t.provider.Complete(ctx, req)
}

// admit records a request if the window has room. Otherwise it reports how
// long until the oldest admitted request leaves the window.
func (t *Throttled) admit() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-ThrottleWindow)
	drop := 0
	for drop < len(t.admitted) && !t.admitted[drop].After(cutoff) {
		drop++
	}
	t.admitted = t.admitted[drop:]

	if len(t.admitted) >= t.limit {
		return t.admitted[0].Sub(cutoff), false
	}
	t.admitted = append(t.admitted, now)
	return 0, true
}
