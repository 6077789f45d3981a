// Package bdgest implements the authenticated catalog portal provider.
package bdgest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/cover"
	"comic-catalog-provider/internal/domain/enrich"
	"comic-catalog-provider/internal/domain/normalize"
	"comic-catalog-provider/internal/domain/parser"
	"comic-catalog-provider/internal/domain/session"
	"comic-catalog-provider/internal/transport"
)

const (
	// DefaultBaseURL is the public portal address.
	DefaultBaseURL = "https://online.bdgest.com"

	albumSearchPath  = "/albums/import"
	seriesSearchPath = "/ajax/series"
	detailPath       = "/import/edit"
	defaultCacheTTL  = 24 * time.Hour
)

// albumSearchParams is the full parameter list the import search form
// submits; unused criteria are sent empty.
var albumSearchParams = []string{
	"ids", "s", "t", "e", "c", "y", "ida", "a", "p", "f", "o",
	"lang", "dld", "cmin", "isbn", "dlf", "cmax",
}

// CredentialsFunc returns the account to log in with. It is called before
// every operation so credential changes are picked up without a restart.
type CredentialsFunc func() session.Credentials

type portal struct {
	baseURL       string
	credentials   CredentialsFunc
	client        *transport.Client
	session       *session.Manager
	prober        *cover.Prober
	fetchDetails  bool
	probeCovers   bool
	concurrency   int
	tokenAttempts int
	cacheTTL      time.Duration
	logger        *slog.Logger
}

// Option configures the portal provider.
type Option func(*portal)

// WithDetails toggles detail page enrichment of album searches.
func WithDetails(enabled bool) Option {
	return func(p *portal) { p.fetchDetails = enabled }
}

// WithConcurrency sets how many detail pages are fetched at once.
func WithConcurrency(n int) Option {
	return func(p *portal) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithCoverProbe enables a HEAD request confirming each full-size cover.
func WithCoverProbe(enabled bool) Option {
	return func(p *portal) { p.probeCovers = enabled }
}

// WithClient sets the transport client (timeouts, user agent, log sink).
func WithClient(c *transport.Client) Option {
	return func(p *portal) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *portal) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTokenAttempts sets the CSRF token fetch budget of the login flow.
func WithTokenAttempts(n int) Option {
	return func(p *portal) { p.tokenAttempts = n }
}

// WithCacheTTL overrides how long service-level caches keep results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *portal) {
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// New creates the portal provider. The returned value also implements
// domain.SeriesAlbumSearcher and domain.DetailFetcher.
func New(baseURL string, credentials CredentialsFunc, opts ...Option) domain.Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &portal{
		baseURL:      strings.TrimRight(baseURL, "/"),
		credentials:  credentials,
		fetchDetails: true,
		concurrency:  enrich.DefaultConcurrency,
		cacheTTL:     defaultCacheTTL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = transport.New(domain.SourceBDGest)
	}
	if p.credentials == nil {
		p.credentials = func() session.Credentials { return session.Credentials{} }
	}
	p.logger = p.logger.With("provider", domain.SourceBDGest)
	p.session = session.New(domain.SourceBDGest, p.baseURL, p.client,
		session.WithLogger(p.logger), session.WithTokenAttempts(p.tokenAttempts))
	p.prober = cover.NewProber(p.session, p.logger)
	return p
}

// ID returns the unique identifier for this provider.
func (p *portal) ID() string {
	return domain.SourceBDGest
}

// CacheTTL returns the cache duration for this provider.
func (p *portal) CacheTTL() time.Duration {
	return p.cacheTTL
}

// SearchSeries queries the series autocomplete endpoint.
func (p *portal) SearchSeries(ctx context.Context, query string) domain.Result[domain.Series] {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.OK[domain.Series](nil)
	}
	if err := p.session.Ensure(ctx, p.credentials()); err != nil {
		return domain.Failed[domain.Series](err)
	}

	searchURL := fmt.Sprintf("%s%s?term=%s", p.baseURL, seriesSearchPath, url.QueryEscape(query))
	resp, err := p.session.Get(ctx, searchURL, http.Header{"X-Requested-With": {"XMLHttpRequest"}})
	if err != nil {
		return domain.Failed[domain.Series](p.fail(ctx, err))
	}

	candidates, err := parser.ParseSeriesCandidates(resp.Body, resp.ContentType())
	if err != nil {
		return domain.Failed[domain.Series](p.fail(ctx, fmt.Errorf("parse series candidates: %w", err)))
	}

	series := make([]domain.Series, 0, len(candidates))
	for _, c := range candidates {
		s := normalize.Candidate(c, domain.SourceBDGest)
		s.URL = p.absolute(s.URL)
		series = append(series, s)
	}
	p.logger.Info("Series search completed", "query", query, "results", len(series))
	return domain.OK(series)
}

// SearchAlbums runs a free-text album search.
func (p *portal) SearchAlbums(ctx context.Context, query string) domain.Result[domain.Album] {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.OK[domain.Album](nil)
	}
	return p.searchAlbums(ctx, p.albumSearchURL(map[string]string{"t": query}), "")
}

// SearchAlbumsBySeriesID lists the albums of one series. seriesName labels
// rows the portal returns without a series.
func (p *portal) SearchAlbumsBySeriesID(ctx context.Context, seriesID, seriesName string) domain.Result[domain.Album] {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return domain.OK[domain.Album](nil)
	}
	return p.searchAlbums(ctx, p.albumSearchURL(map[string]string{"ids": seriesID, "s": seriesName}), seriesName)
}

// AlbumDetails fetches and parses one album detail page.
func (p *portal) AlbumDetails(ctx context.Context, detailURL string) (domain.Details, error) {
	if detailURL == "" {
		return domain.Details{}, nil
	}
	if err := p.session.Ensure(ctx, p.credentials()); err != nil {
		return nil, err
	}
	resp, err := p.session.Get(ctx, detailURL, nil)
	if err != nil {
		return nil, err
	}
	return parser.ParseDetailPage(bytes.NewReader(resp.Body))
}

func (p *portal) searchAlbums(ctx context.Context, searchURL, fallbackSeries string) domain.Result[domain.Album] {
	if err := p.session.Ensure(ctx, p.credentials()); err != nil {
		return domain.Failed[domain.Album](err)
	}

	resp, err := p.session.Get(ctx, searchURL, nil)
	if err != nil {
		return domain.Failed[domain.Album](p.fail(ctx, err))
	}

	rows, signal, err := parser.ParseSearchResults(bytes.NewReader(resp.Body), parser.SearchOptions{DetailURL: p.detailURL})
	if err != nil {
		return domain.Failed[domain.Album](p.fail(ctx, err))
	}
	if signal != nil {
		p.logger.Info("Album search refused by portal", "url", searchURL, "message", signal.Message)
		return domain.Signaled[domain.Album](*signal)
	}

	albums := make([]domain.Album, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return domain.Cancelled(albums, err)
		}
		album := normalize.PortalAlbum(row, fallbackSeries)
		if p.probeCovers {
			album.CoverURL = p.prober.Upgrade(ctx, row.CoverURL)
		}
		albums = append(albums, album)
	}

	if p.fetchDetails && len(albums) > 0 {
		enriched, err := enrich.Enrich(ctx, albums, p.AlbumDetails, p.concurrency)
		albums = enriched
		var partial *enrich.PartialFailure
		switch {
		case errors.As(err, &partial):
			p.logger.Warn("Some album details are missing", "failed", len(partial.Failed), "total", len(albums))
			return domain.PartialOK(albums, err)
		case err != nil:
			return domain.Cancelled(albums, err)
		}
	}

	p.logger.Info("Album search completed", "url", searchURL, "results", len(albums))
	return domain.OK(albums)
}

// fail drops the session after a search error, unless the caller gave up.
func (p *portal) fail(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		p.session.Invalidate()
		p.logger.Error("Portal request failed", "error", err)
	}
	return err
}

func (p *portal) albumSearchURL(values map[string]string) string {
	q := url.Values{}
	for _, name := range albumSearchParams {
		q.Set(name, values[name])
	}
	return p.baseURL + albumSearchPath + "?" + q.Encode()
}

func (p *portal) detailURL(id string) string {
	return fmt.Sprintf("%s%s?IdAlbum=%s", p.baseURL, detailPath, url.QueryEscape(id))
}

func (p *portal) absolute(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(p.baseURL + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
