package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/cache"
	"comic-catalog-provider/internal/domain/provider/all"
	"comic-catalog-provider/internal/logging"
)

const defaultCacheTTL = 1 * time.Hour

// Cache key operations.
const (
	opSeries       = "series"
	opAlbums       = "albums"
	opSeriesAlbums = "series_albums"
	opDetails      = "details"
)

// Service orchestrates catalog lookups across providers with caching support.
type Service struct {
	providers []domain.Provider
	byID      map[string]domain.Provider
	cache     cache.Store
	group     singleflight.Group
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the result store. The default is an in-memory cache.
func WithCache(store cache.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.cache = store
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a service over the given catalog providers. An
// aggregate provider answering for all of them is registered as "all".
func NewService(providers []domain.Provider, opts ...Option) *Service {
	s := &Service{
		providers: providers,
		byID:      make(map[string]domain.Provider, len(providers)+1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache(cache.DefaultMaxEntries)
	}
	for _, p := range providers {
		s.byID[p.ID()] = p
	}
	s.byID[all.ID] = all.NewProvider(providers...)
	return s
}

// Providers returns the list of registered catalog providers.
func (s *Service) Providers() []domain.Provider {
	return s.providers
}

// Close releases the result store.
func (s *Service) Close() error {
	return s.cache.Close()
}

// SearchSeries searches series on providerID.
func (s *Service) SearchSeries(ctx context.Context, providerID, query string) (domain.Result[domain.Series], error) {
	p, err := s.getProvider(providerID)
	if err != nil {
		return domain.Result[domain.Series]{}, err
	}
	return cached(ctx, s, p, opSeries, query, func(ctx context.Context) domain.Result[domain.Series] {
		return p.SearchSeries(ctx, query)
	}), nil
}

// SearchAlbums searches albums on providerID.
func (s *Service) SearchAlbums(ctx context.Context, providerID, query string) (domain.Result[domain.Album], error) {
	p, err := s.getProvider(providerID)
	if err != nil {
		return domain.Result[domain.Album]{}, err
	}
	return cached(ctx, s, p, opAlbums, query, func(ctx context.Context) domain.Result[domain.Album] {
		return p.SearchAlbums(ctx, query)
	}), nil
}

// SearchAlbumsBySeriesID lists the albums of one series. It returns
// domain.ErrUnsupported when providerID cannot list by series id.
func (s *Service) SearchAlbumsBySeriesID(ctx context.Context, providerID, seriesID, seriesName string) (domain.Result[domain.Album], error) {
	p, err := s.getProvider(providerID)
	if err != nil {
		return domain.Result[domain.Album]{}, err
	}
	searcher, ok := p.(domain.SeriesAlbumSearcher)
	if !ok {
		return domain.Result[domain.Album]{}, fmt.Errorf("%s: list albums by series: %w", providerID, domain.ErrUnsupported)
	}
	return cached(ctx, s, p, opSeriesAlbums, seriesID+"|"+seriesName, func(ctx context.Context) domain.Result[domain.Album] {
		return searcher.SearchAlbumsBySeriesID(ctx, seriesID, seriesName)
	}), nil
}

// AlbumDetails fetches the detail mapping of one album page. It returns
// domain.ErrUnsupported when providerID has no detail pages.
func (s *Service) AlbumDetails(ctx context.Context, providerID, detailURL string) (domain.Details, error) {
	p, err := s.getProvider(providerID)
	if err != nil {
		return nil, err
	}
	fetcher, ok := p.(domain.DetailFetcher)
	if !ok {
		return nil, fmt.Errorf("%s: album details: %w", providerID, domain.ErrUnsupported)
	}

	log := logging.WithContext(ctx, s.logger)
	key := cacheKey(p.ID(), opDetails, detailURL)
	if data, ok := s.cache.Get(ctx, key); ok {
		var details domain.Details
		if err := json.Unmarshal(data, &details); err == nil {
			log.Debug("Cache hit", "key", key)
			return details, nil
		}
		log.Warn("Discarding unreadable cache entry", "key", key)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return fetcher.AlbumDetails(ctx, detailURL)
	})
	if err != nil {
		log.Error("Album detail fetch failed", "provider", p.ID(), "url", detailURL, "error", err)
		return nil, err
	}
	details := v.(domain.Details)
	s.store(ctx, p, key, details)
	return details, nil
}

// getProvider helper to find a provider by ID.
func (s *Service) getProvider(id string) (domain.Provider, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, id)
	}
	return p, nil
}

// cached runs search through the result cache. Only complete ok results are stored,
// and concurrent identical lookups share one provider call.
func cached[T any](ctx context.Context, s *Service, p domain.Provider, op, query string, search func(context.Context) domain.Result[T]) domain.Result[T] {
	log := logging.WithContext(ctx, s.logger)
	key := cacheKey(p.ID(), op, query)

	if data, ok := s.cache.Get(ctx, key); ok {
		var items []T
		if err := json.Unmarshal(data, &items); err == nil {
			log.Debug("Cache hit", "key", key)
			return domain.OK(items)
		}
		log.Warn("Discarding unreadable cache entry", "key", key)
	}

	v, _, shared := s.group.Do(key, func() (any, error) {
		return search(ctx), nil
	})
	res := v.(domain.Result[T])

	log.Info("Catalog search finished",
		"provider", p.ID(),
		"op", op,
		"query", query,
		"status", res.Status,
		"items", len(res.Items),
		"shared", shared,
	)
	if !res.Succeeded() {
		if res.Err != nil {
			log.Warn("Catalog search did not succeed", "provider", p.ID(), "status", res.Status, "error", res.Err)
		}
		return res
	}

	if res.Partial {
		log.Warn("Not caching incomplete result", "provider", p.ID(), "key", key, "error", res.Err)
		return res
	}

	s.store(ctx, p, key, res.Items)
	return res
}

func (s *Service) store(ctx context.Context, p domain.Provider, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.WithContext(ctx, s.logger).Warn("Failed to encode cache entry", "key", key, "error", err)
		return
	}
	ttl := p.CacheTTL()
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	s.cache.Put(ctx, key, data, ttl)
}

func cacheKey(providerID, op, query string) string {
	return providerID + ":" + op + ":" + strings.TrimSpace(query)
}
