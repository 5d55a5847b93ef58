package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/annexlab/cleanroom/internal/config"
)

// DefaultTimeout bounds each upstream feed request.
const DefaultTimeout = 10 * time.Second

const maxFeedBytes = 10 << 20

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client *http.Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewFetcher creates a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "feeds").Logger(),
		now:    time.Now,
	}
}

// Fetch downloads and parses one feed.
func (f *Fetcher) Fetch(ctx context.Context, category string, src config.FeedSource) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", "cleanroom-feeds/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", src.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.URL, err)
	}
	return Parse(data, category, src.Name, f.now())
}

// FetchCategory fetches all sources of a category concurrently and merges
// them newest first, keeping at most MaxPerCategory items. A failing feed
// is logged and contributes nothing; the returned count reports how many
// feeds failed.
func (f *Fetcher) FetchCategory(ctx context.Context, category string, sources []config.FeedSource) ([]Item, int) {
	results := make([][]Item, len(sources))
	failed := make([]bool, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			items, err := f.Fetch(ctx, category, src)
			if err != nil {
				f.log.Warn().Err(err).Str("category", category).Str("feed", src.Name).Msg("feed fetch failed")
				failed[i] = true
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	nFailed := 0
	for _, bad := range failed {
		if bad {
			nFailed++
		}
	}
	return Merge(results...), nFailed
}

// Merge combines item lists, dropping duplicate ids, sorted newest first
// and capped at MaxPerCategory.
func Merge(lists ...[]Item) []Item {
	seen := make(map[string]bool)
	merged := []Item{}
	for _, l := range lists {
		for _, it := range l {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			merged = append(merged, it)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date.After(merged[j].Date) })
	if len(merged) > MaxPerCategory {
		merged = merged[:MaxPerCategory]
	}
	return merged
}
