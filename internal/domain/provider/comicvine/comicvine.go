// Package comicvine implements the public comic database provider.
package comicvine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/enrich"
	"comic-catalog-provider/internal/domain/normalize"
	"comic-catalog-provider/internal/domain/parser"
	"comic-catalog-provider/internal/transport"
)

const (
	// DefaultBaseURL is the public site and API host.
	DefaultBaseURL = "https://comicvine.gamespot.com"
	// UserAgent identifies the client; the API rejects generic agents.
	UserAgent = "ComicRenamerApp/1.0"
	// DefaultMaxIssues caps how many issues of a volume are returned.
	DefaultMaxIssues = 50

	searchLimit       = 100
	apiStatusOK       = 1
	apiStatusBadKey   = 100
	defaultCacheTTL   = 12 * time.Hour
	issueFields       = "id,name,issue_number,cover_date,store_date,volume,image,site_detail_url,api_detail_url"
	volumeFields      = "id,name,start_year,publisher,image,site_detail_url,count_of_issues,concepts,issues"
	volumeSearchField = "id,name,start_year,publisher,image,site_detail_url,count_of_issues"
	issueDetailField  = "id,name,issue_number,cover_date,store_date,description,volume,image,site_detail_url,person_credits,character_credits"
)

var issueIDPattern = regexp.MustCompile(`4000-(\d+)`)

type publicSearch struct {
	baseURL      string
	apiKey       string
	client       *transport.Client
	fetchDetails bool
	concurrency  int
	maxIssues    int
	cacheTTL     time.Duration
	logger       *slog.Logger
}

// Option configures the provider.
type Option func(*publicSearch)

// WithDetails toggles per-issue detail enrichment of album searches.
func WithDetails(enabled bool) Option {
	return func(p *publicSearch) { p.fetchDetails = enabled }
}

// WithConcurrency sets how many issue details are fetched at once.
func WithConcurrency(n int) Option {
	return func(p *publicSearch) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithMaxIssues caps the number of issues listed for a volume.
func WithMaxIssues(n int) Option {
	return func(p *publicSearch) {
		if n > 0 {
			p.maxIssues = n
		}
	}
}

// WithClient sets the transport client.
func WithClient(c *transport.Client) Option {
	return func(p *publicSearch) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *publicSearch) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCacheTTL overrides how long service-level caches keep results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *publicSearch) {
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// New creates the provider. apiKey is required by the album endpoints only.
// The returned value also implements domain.SeriesAlbumSearcher and
// domain.DetailFetcher.
func New(baseURL, apiKey string, opts ...Option) domain.Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &publicSearch{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		fetchDetails: true,
		concurrency:  enrich.DefaultConcurrency,
		maxIssues:    DefaultMaxIssues,
		cacheTTL:     defaultCacheTTL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = transport.New(domain.SourceComicVine, transport.WithUserAgent(UserAgent))
	}
	p.logger = p.logger.With("provider", domain.SourceComicVine)
	return p
}

// ID returns the unique identifier for this provider.
func (p *publicSearch) ID() string {
	return domain.SourceComicVine
}

// CacheTTL returns the cache duration for this provider.
func (p *publicSearch) CacheTTL() time.Duration {
	return p.cacheTTL
}

// SearchSeries queries the site autocomplete, which answers either JSON or
// an HTML fragment. When it finds nothing and an API key is configured, the
// API volume search is tried instead.
func (p *publicSearch) SearchSeries(ctx context.Context, query string) domain.Result[domain.Series] {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.OK[domain.Series](nil)
	}

	searchURL := fmt.Sprintf("%s/search-autocomplete/?term=%s", p.baseURL, url.QueryEscape(query))
	resp, err := p.client.Get(ctx, searchURL, http.Header{"X-Requested-With": {"XMLHttpRequest"}})
	if err != nil {
		return domain.Failed[domain.Series](err)
	}

	candidates, err := parser.ParseSeriesCandidates(resp.Body, resp.ContentType())
	if err != nil {
		p.logger.Error("Unreadable autocomplete response", "query", query, "error", err)
		return domain.Failed[domain.Series](fmt.Errorf("parse autocomplete: %w", err))
	}

	series := make([]domain.Series, 0, len(candidates))
	for _, c := range candidates {
		s := normalize.Candidate(c, domain.SourceComicVine)
		s.URL = p.absolute(s.URL)
		series = append(series, s)
	}
	if len(series) == 0 && p.apiKey != "" {
		p.logger.Debug("Autocomplete found nothing, searching volumes", "query", query)
		return p.searchVolumes(ctx, query)
	}
	p.logger.Info("Series search completed", "query", query, "results", len(series))
	return domain.OK(series)
}

// searchVolumes runs the API volume search, which also reports start year
// and publisher.
func (p *publicSearch) searchVolumes(ctx context.Context, query string) domain.Result[domain.Series] {
	var resp normalize.CVResponse[[]normalize.CVVolume]
	err := p.api(ctx, "/api/search/", url.Values{
		"resources":  {"volume"},
		"query":      {query},
		"limit":      {strconv.Itoa(searchLimit)},
		"field_list": {volumeSearchField},
	}, &resp)
	if err != nil {
		return domain.Failed[domain.Series](err)
	}

	series := make([]domain.Series, 0, len(resp.Results))
	for _, v := range resp.Results {
		s := normalize.Volume(v)
		if s.Name == "" {
			continue
		}
		s.URL = p.absolute(s.URL)
		series = append(series, s)
	}
	p.logger.Info("Volume search completed", "query", query, "results", len(series))
	return domain.OK(series)
}

// SearchAlbums lists the issues of a volume when query is a numeric volume
// id and runs an issue search otherwise.
func (p *publicSearch) SearchAlbums(ctx context.Context, query string) domain.Result[domain.Album] {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.OK[domain.Album](nil)
	}
	if _, err := strconv.Atoi(query); err == nil {
		return p.SearchAlbumsBySeriesID(ctx, query, "")
	}
	if p.apiKey == "" {
		return domain.Failed[domain.Album](p.missingKey())
	}

	var resp normalize.CVResponse[[]normalize.CVIssue]
	err := p.api(ctx, "/api/search/", url.Values{
		"resources":  {"issue"},
		"query":      {query},
		"limit":      {strconv.Itoa(searchLimit)},
		"field_list": {issueFields},
	}, &resp)
	if err != nil {
		return domain.Failed[domain.Album](err)
	}

	albums := make([]domain.Album, 0, len(resp.Results))
	for _, issue := range resp.Results {
		albums = append(albums, normalize.Issue(issue, nil))
	}
	return p.finish(ctx, albums, nil, query)
}

// SearchAlbumsBySeriesID lists the issues of one volume. seriesName labels
// issues when the volume name is missing.
func (p *publicSearch) SearchAlbumsBySeriesID(ctx context.Context, seriesID, seriesName string) domain.Result[domain.Album] {
	seriesID = strings.TrimPrefix(strings.TrimSpace(seriesID), "4050-")
	if seriesID == "" {
		return domain.OK[domain.Album](nil)
	}
	if p.apiKey == "" {
		return domain.Failed[domain.Album](p.missingKey())
	}

	var resp normalize.CVResponse[normalize.CVVolume]
	err := p.api(ctx, fmt.Sprintf("/api/volume/4050-%s/", url.PathEscape(seriesID)), url.Values{
		"field_list": {volumeFields},
	}, &resp)
	if err != nil {
		return domain.Failed[domain.Album](err)
	}

	volume := resp.Results
	if volume.Name == "" {
		volume.Name = seriesName
	}
	issues := volume.Issues
	if len(issues) > p.maxIssues {
		p.logger.Debug("Truncating volume issue list", "volume", seriesID, "issues", len(issues), "max", p.maxIssues)
		issues = issues[:p.maxIssues]
	}

	albums := make([]domain.Album, 0, len(issues))
	for _, issue := range issues {
		albums = append(albums, normalize.Issue(issue, &volume))
	}
	return p.finish(ctx, albums, &volume, seriesID)
}

// AlbumDetails fetches one issue. detailURL may be the site page or the API
// URL; only its 4000-<id> part is used.
func (p *publicSearch) AlbumDetails(ctx context.Context, detailURL string) (domain.Details, error) {
	return p.issueDetails(ctx, detailURL, nil)
}

func (p *publicSearch) issueDetails(ctx context.Context, detailURL string, volume *normalize.CVVolume) (domain.Details, error) {
	m := issueIDPattern.FindStringSubmatch(detailURL)
	if m == nil {
		return domain.Details{}, nil
	}
	if p.apiKey == "" {
		return nil, p.missingKey()
	}

	var resp normalize.CVResponse[normalize.CVIssue]
	err := p.api(ctx, fmt.Sprintf("/api/issue/4000-%s/", m[1]), url.Values{
		"field_list": {issueDetailField},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalize.IssueDetails(resp.Results, volume), nil
}

func (p *publicSearch) finish(ctx context.Context, albums []domain.Album, volume *normalize.CVVolume, query string) domain.Result[domain.Album] {
	if p.fetchDetails && len(albums) > 0 {
		fetch := func(ctx context.Context, u string) (domain.Details, error) {
			return p.issueDetails(ctx, u, volume)
		}
		enriched, err := enrich.Enrich(ctx, albums, fetch, p.concurrency)
		albums = enriched
		var partial *enrich.PartialFailure
		switch {
		case errors.As(err, &partial):
			p.logger.Warn("Some issue details are missing", "failed", len(partial.Failed), "total", len(albums))
			return domain.PartialOK(albums, err)
		case err != nil:
			return domain.Cancelled(albums, err)
		}
	}
	p.logger.Info("Album search completed", "query", query, "results", len(albums))
	return domain.OK(albums)
}

// api calls a JSON endpoint and decodes its envelope into out. Status codes
// other than 1 are failures; an invalid key is an authentication failure.
func (p *publicSearch) api(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", p.apiKey)
	params.Set("format", "json")
	apiURL := p.baseURL + path + "?" + params.Encode()

	resp, err := p.client.Get(ctx, apiURL, nil)
	if err != nil {
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusUnauthorized {
			return &domain.AuthError{Provider: domain.SourceComicVine, Reason: "API key rejected", Err: err}
		}
		return err
	}

	var envelope struct {
		StatusCode int    `json:"status_code"`
		Error      string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return &domain.TransportError{Provider: domain.SourceComicVine, URL: p.baseURL + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	switch envelope.StatusCode {
	case apiStatusOK:
	case apiStatusBadKey:
		return &domain.AuthError{Provider: domain.SourceComicVine, Reason: envelope.Error}
	default:
		return &domain.TransportError{
			Provider: domain.SourceComicVine,
			URL:      p.baseURL + path,
			Err:      fmt.Errorf("api status %d: %s", envelope.StatusCode, envelope.Error),
		}
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &domain.TransportError{Provider: domain.SourceComicVine, URL: p.baseURL + path, Err: fmt.Errorf("decode results: %w", err)}
	}
	return nil
}

func (p *publicSearch) missingKey() error {
	return &domain.AuthError{Provider: domain.SourceComicVine, Reason: "missing API key"}
}

// absolute resolves a site link against the base URL. Absolute and
// protocol-relative links keep their own host.
func (p *publicSearch) absolute(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(p.baseURL + "/")
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
