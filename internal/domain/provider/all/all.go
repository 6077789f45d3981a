package all

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"comic-catalog-provider/internal/domain"
)

// ID is the identifier under which the aggregate is registered.
const ID = "all"

// Provider implements domain.Provider by aggregating results from multiple providers.
type Provider struct {
	providers []domain.Provider
}

// NewProvider creates a new aggregation provider with the given sub-providers.
func NewProvider(providers ...domain.Provider) *Provider {
	return &Provider{
		providers: providers,
	}
}

// ID returns the unique identifier for this provider.
func (p *Provider) ID() string {
	return ID
}

// SearchSeries queries all registered providers in parallel and merges their series.
func (p *Provider) SearchSeries(ctx context.Context, query string) domain.Result[domain.Series] {
	slog.Info("Starting aggregated series search", "query", query, "providers_count", len(p.providers))
	return fanOut(ctx, p.providers, func(ctx context.Context, pr domain.Provider) domain.Result[domain.Series] {
		return pr.SearchSeries(ctx, query)
	})
}

// SearchAlbums queries all registered providers in parallel and merges their albums.
func (p *Provider) SearchAlbums(ctx context.Context, query string) domain.Result[domain.Album] {
	slog.Info("Starting aggregated album search", "query", query, "providers_count", len(p.providers))
	return fanOut(ctx, p.providers, func(ctx context.Context, pr domain.Provider) domain.Result[domain.Album] {
		return pr.SearchAlbums(ctx, query)
	})
}

// CacheTTL returns the duration for which results should be cached.
func (p *Provider) CacheTTL() time.Duration {
	return 1 * time.Hour
}

// fanOut runs search against every provider and merges the outcomes in
// registration order. Any ok answer makes the merge ok, marked partial when
// another catalog failed or was incomplete; otherwise the first signal wins,
// then the first failure.
func fanOut[T any](ctx context.Context, providers []domain.Provider, search func(context.Context, domain.Provider) domain.Result[T]) domain.Result[T] {
	if len(providers) == 0 {
		return domain.OK[T](nil)
	}

	results := make([]domain.Result[T], len(providers))
	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := search(ctx, provider)
			if !res.Succeeded() {
				slog.Error("Provider search failed in AllProvider", "provider", provider.ID(), "status", res.Status, "error", res.Err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	return merge(results)
}

func merge[T any](results []domain.Result[T]) domain.Result[T] {
	var (
		items     []T
		anyOK     bool
		partial   bool
		signaled  *domain.Result[T]
		failed    *domain.Result[T]
		cancelled *domain.Result[T]
	)
	for i := range results {
		res := results[i]
		switch res.Status {
		case domain.StatusOK:
			anyOK = true
			partial = partial || res.Partial
			items = append(items, res.Items...)
		case domain.StatusTooManyResults:
			if signaled == nil {
				signaled = &results[i]
			}
		case domain.StatusCancelled:
			items = append(items, res.Items...)
			if cancelled == nil {
				cancelled = &results[i]
			}
		default:
			if failed == nil {
				failed = &results[i]
			}
		}
	}

	switch {
	case anyOK && (partial || len(results) > okCount(results)):
		return domain.PartialOK(items, firstErr(results))
	case anyOK:
		return domain.OK(items)
	case signaled != nil:
		return *signaled
	case failed != nil:
		return *failed
	case cancelled != nil:
		return domain.Cancelled(items, cancelled.Err)
	default:
		return domain.OK(items)
	}
}

func okCount[T any](results []domain.Result[T]) int {
	n := 0
	for _, res := range results {
		if res.Succeeded() {
			n++
		}
	}
	return n
}

func firstErr[T any](results []domain.Result[T]) error {
	for _, res := range results {
		switch {
		case res.Err != nil:
			return fmt.Errorf("%s: %w", res.Status, res.Err)
		case res.Signal != nil:
			return fmt.Errorf("%s: %s", res.Status, res.Signal.Message)
		}
	}
	return nil
}
