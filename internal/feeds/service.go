package feeds

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/metrics"
)

// ErrUnknownCategory is returned for categories absent from the configuration.
var ErrUnknownCategory = errors.New("unknown feed category")

// Service serves category listings from the cache, refetching when stale.
type Service struct {
	fetcher    *Fetcher
	cache      *Cache
	categories map[string][]config.FeedSource
	ttl        time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	// one refresh per category at a time
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a feed service. cache and m may be nil; without a
// cache every request fetches upstream.
func NewService(cfg config.FeedsConfig, cache *Cache, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		fetcher:    NewFetcher(time.Duration(cfg.TimeoutSeconds)*time.Second, log),
		cache:      cache,
		categories: cfg.Categories,
		ttl:        time.Duration(cfg.CacheHours) * time.Hour,
		metrics:    m,
		log:        log.With().Str("component", "feeds").Logger(),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Categories returns the configured category names in sorted order.
func (s *Service) Categories() []string {
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Category returns the merged listing of category. force bypasses the cache TTL.
func (s *Service) Category(ctx context.Context, category string, force bool) ([]Item, error) {
	sources, ok := s.categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if s.cache == nil {
		items, failed := s.fetcher.FetchCategory(ctx, category, sources)
		s.recordFetch(category, failed, len(sources))
		return items, nil
	}

	lock := s.lockFor(category)
	lock.Lock()
	defer lock.Unlock()

	if !force {
		fetched, err := s.cache.FetchedAt(ctx, category)
		if err != nil {
			return nil, err
		}
		if !fetched.IsZero() && s.now().Sub(fetched) < s.ttl {
			s.metrics.IncFeedFetch(category, "cache")
			return s.cache.Items(ctx, category, MaxPerCategory)
		}
	}

	items, failed := s.fetcher.FetchCategory(ctx, category, sources)
	s.recordFetch(category, failed, len(sources))
	if len(items) == 0 {
		// Upstream gave nothing; serve whatever is cached.
		return s.cache.Items(ctx, category, MaxPerCategory)
	}
	if err := s.cache.Replace(ctx, category, items, s.now()); err != nil {
		return nil, err
	}
	return s.cache.Items(ctx, category, MaxPerCategory)
}

// All returns every category's listing keyed by name.
func (s *Service) All(ctx context.Context, force bool) (map[string][]Item, error) {
	names := s.Categories()
	results := make([][]Item, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			items, err := s.Category(gctx, name, force)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Item, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

// MarkRead flags a category as read; an empty category marks everything.
func (s *Service) MarkRead(ctx context.Context, category string) (int64, error) {
	if category != "" {
		if _, ok := s.categories[category]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
	}
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.MarkRead(ctx, category)
}

// MarkItemRead flags one item as read.
func (s *Service) MarkItemRead(ctx context.Context, id string) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.MarkItemRead(ctx, id)
}

func (s *Service) lockFor(category string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[category]
	if !ok {
		l = &sync.Mutex{}
		s.locks[category] = l
	}
	return l
}

func (s *Service) recordFetch(category string, failed, total int) {
	switch {
	case failed == 0:
		s.metrics.IncFeedFetch(category, "ok")
	case failed < total:
		s.metrics.IncFeedFetch(category, "partial")
	default:
		s.metrics.IncFeedFetch(category, "error")
	}
}
