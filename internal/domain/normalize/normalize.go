// Package normalize converts catalog-specific rows into domain records.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/cover"
	"comic-catalog-provider/internal/domain/parser"
)

const (
	// ComicVineSiteURL prefixes issue pages when the API omits site_detail_url.
	ComicVineSiteURL = "https://comicvine.gamespot.com"

	// UntitledIssue is the title given to issues the catalog left unnamed.
	UntitledIssue = "Sans titre"

	descriptionLimit = 500
	characterLimit   = 10
	styleLimit       = 3
)

// Detail keys filled from ComicVine issues.
const (
	KeyPublicationDate = "Date de publication"
	KeyStoreDate       = "Date en magasin"
	KeyDescription     = "Description"
	KeyWriters         = "Scénario"
	KeyCredits         = "Auteurs"
	KeyCharacters      = "Personnages"
	KeyStyle           = "Style/Genre"
	KeyVolume          = "Volume"
)

// PortalAlbum maps a portal search row. fallbackSeries is used when the row
// carries no series label.
func PortalAlbum(row parser.AlbumRow, fallbackSeries string) domain.Album {
	series := row.Series
	if series == "" {
		series = parser.Clean(fallbackSeries)
	}
	return domain.Album{
		SeriesName: series,
		ID:         row.ID,
		Number:     row.Number,
		Title:      row.Title,
		Publisher:  row.Editor,
		Collection: row.Collection,
		Date:       row.Date,
		Pages:      row.Pages,
		ISBN:       row.ISBN,
		CoverURL:   cover.Upgrade(row.CoverURL),
		DetailURL:  row.DetailURL,
		Source:     domain.SourceBDGest,
	}
}

// Candidate maps a series autocomplete entry.
func Candidate(c parser.Candidate, source string) domain.Series {
	return domain.Series{
		Name:     c.Name,
		ID:       c.ID,
		Country:  c.Country,
		CoverURL: cover.Upgrade(c.CoverURL),
		URL:      c.URL,
		Source:   source,
	}
}

// Volume maps a ComicVine volume.
func Volume(v CVVolume) domain.Series {
	s := domain.Series{
		Name:      parser.Clean(v.Name),
		CoverURL:  v.Image.Best(),
		URL:       v.SiteDetailURL,
		StartYear: v.StartYear,
		Source:    domain.SourceComicVine,
	}
	if v.ID != 0 {
		s.ID = strconv.Itoa(v.ID)
	}
	if v.Publisher != nil {
		s.Publisher = parser.Clean(v.Publisher.Name)
	}
	return s
}

// Issue maps a ComicVine issue. volume supplies the series name when the
// issue itself does not reference one.
func Issue(issue CVIssue, volume *CVVolume) domain.Album {
	a := domain.Album{
		SeriesName: issueSeries(issue, volume),
		Number:     firstNonEmpty(issue.IssueNumber, issue.AlbumNumber),
		Title:      parser.Clean(issue.Name),
		Date:       issue.CoverDate,
		CoverURL:   firstNonEmpty(issue.Image.Best(), issue.CoverURL),
		DetailURL:  issue.SiteDetailURL,
		Source:     domain.SourceComicVine,
	}
	if a.Title == "" {
		a.Title = UntitledIssue
	}
	if volume != nil && volume.Publisher != nil {
		a.Publisher = parser.Clean(volume.Publisher.Name)
	}
	if issue.ID != 0 {
		a.ID = strconv.Itoa(issue.ID)
		if a.DetailURL == "" {
			a.DetailURL = fmt.Sprintf("%s/issue/4000-%d/", ComicVineSiteURL, issue.ID)
		}
	}
	return a
}

func issueSeries(issue CVIssue, volume *CVVolume) string {
	switch {
	case issue.Volume != nil && issue.Volume.Name != "":
		return parser.Clean(issue.Volume.Name)
	case issue.SerieName != "":
		return parser.Clean(issue.SerieName)
	case volume != nil:
		return parser.Clean(volume.Name)
	}
	return ""
}

// IssueDetails builds the detail mapping of a fully fetched ComicVine issue.
// volume, when known, provides the start year fallback for the publication
// date, the style taken from its concepts and a volume summary.
func IssueDetails(issue CVIssue, volume *CVVolume) domain.Details {
	details := domain.Details{}

	published := issue.CoverDate
	if published == "" && volume != nil {
		published = volume.StartYear
	}
	if published != "" {
		details.Add(KeyPublicationDate, published)
	}
	if issue.StoreDate != "" {
		details.Add(KeyStoreDate, issue.StoreDate)
	}
	if desc := StripHTML(issue.Description); desc != "" {
		details.Add(KeyDescription, truncateRunes(desc, descriptionLimit))
	}

	var writers, credits []string
	for _, p := range issue.PersonCredits {
		name := parser.Clean(p.Name)
		if name == "" {
			continue
		}
		role := parser.Clean(p.Role)
		if role == "" {
			credits = append(credits, name)
		} else {
			credits = append(credits, fmt.Sprintf("%s (%s)", name, role))
		}
		if strings.Contains(strings.ToLower(role), "writer") {
			writers = append(writers, name)
		}
	}
	if len(writers) > 0 {
		details.Add(KeyWriters, strings.Join(writers, ", "))
	}
	if len(credits) > 0 {
		details.Add(KeyCredits, strings.Join(credits, ", "))
	}

	var characters []string
	for _, c := range issue.CharacterCredits {
		if len(characters) == characterLimit {
			break
		}
		if name := parser.Clean(c.Name); name != "" {
			characters = append(characters, name)
		}
	}
	if len(characters) > 0 {
		details.Add(KeyCharacters, strings.Join(characters, ", "))
	}

	if volume != nil {
		if style := VolumeStyle(*volume); style != "" {
			details.Add(KeyStyle, style)
		}
		if summary := volumeSummary(*volume); summary != "" {
			details.Add(KeyVolume, summary)
		}
	}

	return details
}

// VolumeStyle names the genre of a volume from its first concepts.
func VolumeStyle(v CVVolume) string {
	var names []string
	for _, c := range v.Concepts {
		if name := parser.Clean(c.Name); name != "" {
			names = append(names, name)
		}
		if len(names) == styleLimit {
			break
		}
	}
	return strings.Join(names, ", ")
}

func volumeSummary(v CVVolume) string {
	var parts []string
	if name := parser.Clean(v.Name); name != "" {
		parts = append(parts, "Nom: "+name)
	}
	if v.StartYear != "" {
		parts = append(parts, "Année: "+v.StartYear)
	}
	if v.Publisher != nil {
		if publisher := parser.Clean(v.Publisher.Name); publisher != "" {
			parts = append(parts, "Éditeur: "+publisher)
		}
	}
	return strings.Join(parts, "; ")
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return parser.Clean(fragment)
	}
	return parser.Clean(doc.Text())
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
