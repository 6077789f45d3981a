package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/cache"
	"comic-catalog-provider/internal/logging"
)

// MockProvider implements domain.Provider for testing.
type MockProvider struct {
	IDVal        string
	Series       domain.Result[domain.Series]
	Albums       domain.Result[domain.Album]
	MockCacheTTL time.Duration
	Gate         chan struct{}

	calls atomic.Int32
}

func (m *MockProvider) ID() string { return m.IDVal }

func (m *MockProvider) SearchSeries(_ context.Context, _ string) domain.Result[domain.Series] {
	m.calls.Add(1)
	if m.Gate != nil {
		<-m.Gate
	}
	return m.Series
}

func (m *MockProvider) SearchAlbums(_ context.Context, _ string) domain.Result[domain.Album] {
	m.calls.Add(1)
	return m.Albums
}

func (m *MockProvider) CacheTTL() time.Duration { return m.MockCacheTTL }

// MockCatalog additionally lists albums by series and fetches details.
type MockCatalog struct {
	MockProvider
	Details    domain.Details
	DetailsErr error
	lastSeries string
}

func (m *MockCatalog) SearchAlbumsBySeriesID(_ context.Context, seriesID, seriesName string) domain.Result[domain.Album] {
	m.calls.Add(1)
	m.lastSeries = seriesID + "/" + seriesName
	return m.Albums
}

func (m *MockCatalog) AlbumDetails(_ context.Context, _ string) (domain.Details, error) {
	m.calls.Add(1)
	return m.Details, m.DetailsErr
}

func newTestService(providers ...domain.Provider) *Service {
	return NewService(providers, WithCache(cache.NewMemoryCache(100)), WithLogger(logging.NewNop()))
}

func TestService_SearchSeries_CachesOK(t *testing.T) {
	mock := &MockProvider{
		IDVal:        "test_provider",
		Series:       domain.OK([]domain.Series{{Name: "Blacksad", Source: "test_provider"}}),
		MockCacheTTL: 1 * time.Hour,
	}
	svc := newTestService(mock)

	res, err := svc.SearchSeries(context.Background(), "test_provider", "blacksad")
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}
	if res.Status != domain.StatusOK || len(res.Items) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	// Cached search should not call the provider again, even if it now fails.
	mock.Series = domain.Failed[domain.Series](&domain.TransportError{Provider: "test_provider", StatusCode: 500})
	res, err = svc.SearchSeries(context.Background(), "test_provider", "blacksad")
	if err != nil {
		t.Fatalf("cached search failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "Blacksad" {
		t.Errorf("expected cached result, got %+v", res.Items)
	}
	if got := mock.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}
}

func TestService_DoesNotCacheFailures(t *testing.T) {
	tests := []struct {
		name   string
		result domain.Result[domain.Album]
	}{
		{"signal", domain.Signaled[domain.Album](domain.ErrorSignal{Code: domain.SignalTooManyResults})},
		{"auth", domain.Failed[domain.Album](&domain.AuthError{Provider: "p", Reason: "login rejected"})},
		{"cancelled", domain.Cancelled[domain.Album]([]domain.Album{{Title: "partial"}}, context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockProvider{IDVal: "p", Albums: tt.result}
			svc := newTestService(mock)

			for range 2 {
				res, err := svc.SearchAlbums(context.Background(), "p", "q")
				if err != nil {
					t.Fatalf("SearchAlbums failed: %v", err)
				}
				if res.Status != tt.result.Status {
					t.Errorf("expected %s, got %s", tt.result.Status, res.Status)
				}
			}
			if got := mock.calls.Load(); got != 2 {
				t.Errorf("expected every call to reach the provider, got %d calls", got)
			}
		})
	}
}

// sequenceProvider answers album searches from a fixed list, repeating the last entry.
type sequenceProvider struct {
	MockProvider
	answers []domain.Result[domain.Album]
}

func (m *sequenceProvider) SearchAlbums(_ context.Context, _ string) domain.Result[domain.Album] {
	n := int(m.calls.Add(1)) - 1
	return m.answers[min(n, len(m.answers)-1)]
}

func TestService_DoesNotCachePartialResults(t *testing.T) {
	incomplete := []domain.Album{{Title: "Blacksad", Details: domain.Details{}}}
	complete := []domain.Album{{Title: "Blacksad", Details: domain.Details{"Dessin": "Guarnido"}}}
	mock := &sequenceProvider{
		MockProvider: MockProvider{IDVal: "portal", MockCacheTTL: time.Hour},
		answers: []domain.Result[domain.Album]{
			domain.PartialOK(incomplete, errors.New("1 of 1 detail pages failed")),
			domain.OK(complete),
		},
	}
	svc := newTestService(mock)
	ctx := context.Background()

	first, _ := svc.SearchAlbums(ctx, "portal", "blacksad")
	if !first.Partial {
		t.Fatalf("expected partial first result, got %+v", first)
	}
	second, _ := svc.SearchAlbums(ctx, "portal", "blacksad")
	if second.Partial || second.Items[0].Details["Dessin"] != "Guarnido" {
		t.Fatalf("expected a fresh complete result, got %+v", second)
	}
	third, _ := svc.SearchAlbums(ctx, "portal", "blacksad")
	if third.Items[0].Details["Dessin"] != "Guarnido" {
		t.Errorf("expected cached details, got %+v", third)
	}
	if got := mock.calls.Load(); got != 2 {
		t.Errorf("expected 2 provider calls, got %d", got)
	}
}

func TestService_ProviderNotFound(t *testing.T) {
	svc := newTestService(&MockProvider{IDVal: "provider_a"})

	_, err := svc.SearchSeries(context.Background(), "provider_b", "query")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
	_, err = svc.AlbumDetails(context.Background(), "provider_b", "http://x")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestService_Unsupported(t *testing.T) {
	svc := newTestService(&MockProvider{IDVal: "plain"})

	if _, err := svc.SearchAlbumsBySeriesID(context.Background(), "plain", "1", "x"); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := svc.AlbumDetails(context.Background(), "all", "http://x"); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for aggregate, got %v", err)
	}
}

func TestService_SearchAlbumsBySeriesID(t *testing.T) {
	catalog := &MockCatalog{MockProvider: MockProvider{
		IDVal:  "catalog",
		Albums: domain.OK([]domain.Album{{Title: "Quelque part entre les ombres"}}),
	}}
	svc := newTestService(catalog)

	res, err := svc.SearchAlbumsBySeriesID(context.Background(), "catalog", "42", "Blacksad")
	if err != nil {
		t.Fatalf("SearchAlbumsBySeriesID failed: %v", err)
	}
	if len(res.Items) != 1 || catalog.lastSeries != "42/Blacksad" {
		t.Errorf("unexpected result %+v (last series %q)", res, catalog.lastSeries)
	}

	// A different series name is a different cache entry.
	if _, err := svc.SearchAlbumsBySeriesID(context.Background(), "catalog", "42", "Other"); err != nil {
		t.Fatal(err)
	}
	if got := catalog.calls.Load(); got != 2 {
		t.Errorf("expected 2 provider calls, got %d", got)
	}
}

func TestService_AlbumDetails(t *testing.T) {
	catalog := &MockCatalog{
		MockProvider: MockProvider{IDVal: "catalog", MockCacheTTL: time.Hour},
		Details:      domain.Details{"Scénario": "Díaz Canales, Juan"},
	}
	svc := newTestService(catalog)

	for range 2 {
		details, err := svc.AlbumDetails(context.Background(), "catalog", "http://example/1")
		if err != nil {
			t.Fatalf("AlbumDetails failed: %v", err)
		}
		if details["Scénario"] != "Díaz Canales, Juan" {
			t.Errorf("unexpected details %v", details)
		}
	}
	if got := catalog.calls.Load(); got != 1 {
		t.Errorf("expected cached details, got %d provider calls", got)
	}

	catalog.DetailsErr = &domain.TransportError{Provider: "catalog", StatusCode: 404}
	if _, err := svc.AlbumDetails(context.Background(), "catalog", "http://example/2"); err == nil {
		t.Error("expected error from failing detail fetch")
	}
}

func TestService_AllMergesProviders(t *testing.T) {
	a := &MockProvider{IDVal: "a", Series: domain.OK([]domain.Series{{Name: "A"}})}
	b := &MockProvider{IDVal: "b", Series: domain.OK([]domain.Series{{Name: "B"}})}
	svc := newTestService(a, b)

	res, err := svc.SearchSeries(context.Background(), "all", "q")
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}
	if len(res.Items) != 2 || res.Items[0].Name != "A" || res.Items[1].Name != "B" {
		t.Errorf("unexpected merge %+v", res.Items)
	}
}

func TestService_ConcurrentLookupsShareCall(t *testing.T) {
	mock := &MockProvider{
		IDVal:  "slow",
		Series: domain.OK([]domain.Series{{Name: "Thorgal"}}),
		Gate:   make(chan struct{}),
	}
	svc := newTestService(mock)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.SearchSeries(context.Background(), "slow", "thorgal")
			if err != nil || len(res.Items) != 1 {
				t.Errorf("unexpected result %+v, %v", res, err)
			}
		}()
	}

	// Let the callers pile up on the in-flight lookup before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(mock.Gate)
	wg.Wait()

	if got := mock.calls.Load(); got > 5 || got < 1 {
		t.Errorf("unexpected provider call count %d", got)
	}
}

func TestService_Providers(t *testing.T) {
	p1 := &MockProvider{IDVal: "a"}
	p2 := &MockProvider{IDVal: "b"}
	svc := newTestService(p1, p2)

	providers := svc.Providers()
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ID() != "a" || providers[1].ID() != "b" {
		t.Errorf("unexpected provider IDs: %s, %s", providers[0].ID(), providers[1].ID())
	}
}
