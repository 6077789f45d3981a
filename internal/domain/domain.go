package domain

import (
	"context"
	"fmt"
	"time"
)

// Catalog tags carried by every record.
const (
	SourceBDGest    = "bdgest"
	SourceComicVine = "comicvine"
)

// Series represents a catalog series entity.
type Series struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Country   string `json:"country,omitempty"`
	CoverURL  string `json:"coverUrl,omitempty"`
	URL       string `json:"url,omitempty"`
	StartYear string `json:"startYear,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Source    string `json:"source"`
}

// Album represents one catalog item (issue, tome) within a series.
type Album struct {
	SeriesName string  `json:"seriesName"`
	ID         string  `json:"id,omitempty"`
	Number     string  `json:"number"`
	Title      string  `json:"title"`
	Publisher  string  `json:"publisher,omitempty"`
	Collection string  `json:"collection,omitempty"`
	Date       string  `json:"date,omitempty"`
	Pages      string  `json:"pages,omitempty"`
	ISBN       string  `json:"isbn,omitempty"`
	CoverURL   string  `json:"coverUrl,omitempty"`
	DetailURL  string  `json:"detailUrl,omitempty"`
	Details    Details `json:"details,omitempty"`
	Source     string  `json:"source"`
}

// Details is the free-form label to value mapping scraped from an album page.
// Keys are unique; a repeated label is stored as "label#2", "label#3", ...
type Details map[string]string

// Add stores value under key, suffixing the key when it is already taken.
// It returns the key actually used.
func (d Details) Add(key, value string) string {
	k := key
	for i := 2; ; i++ {
		if _, taken := d[k]; !taken {
			break
		}
		k = fmt.Sprintf("%s#%d", key, i)
	}
	d[k] = value
	return k
}

// SignalTooManyResults is the code of the signal raised when a catalog
// refuses to enumerate an overly broad query.
const SignalTooManyResults = "too_many_results"

// ErrorSignal is returned in place of records when the catalog response
// describes an out-of-band condition that is not an HTTP error.
type ErrorSignal struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Provider is implemented by every catalog.
type Provider interface {
	// ID returns the unique identifier of the provider (e.g., "bdgest").
	ID() string

	// SearchSeries searches series by free text.
	SearchSeries(ctx context.Context, query string) Result[Series]

	// SearchAlbums searches albums by free text or catalog-specific series id.
	SearchAlbums(ctx context.Context, query string) Result[Album]

	// CacheTTL returns the duration for which results should be cached.
	CacheTTL() time.Duration
}

// SeriesAlbumSearcher is implemented by catalogs able to list the albums of
// one series by its identifier.
type SeriesAlbumSearcher interface {
	SearchAlbumsBySeriesID(ctx context.Context, seriesID, seriesName string) Result[Album]
}

// DetailFetcher is implemented by catalogs exposing a per-album detail page.
type DetailFetcher interface {
	AlbumDetails(ctx context.Context, detailURL string) (Details, error)
}
