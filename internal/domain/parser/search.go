package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"comic-catalog-provider/internal/domain"
)

// Phrases the portal prints instead of a result table when a query matches
// too many albums.
const (
	tooManyPhrase  = "plus de 1000 albums"
	tooManyRefine  = "veuillez affiner"
	resultsTable   = "table.table-albums-mid"
	resultRow      = "tr.clic"
	minResultCells = 4
)

// AlbumRow is one row of the portal album search table.
type AlbumRow struct {
	ID         string
	CoverURL   string
	Series     string
	RawTitle   string
	Number     string
	Title      string
	Editor     string
	Date       string
	Pages      string
	Collection string
	ISBN       string
	DetailURL  string
}

// SearchOptions tunes ParseSearchResults.
type SearchOptions struct {
	// DetailURL builds the canonical detail page URL of an album id.
	DetailURL func(id string) string
}

// ParseSearchResults extracts album rows from a portal search page. A page
// carrying the too-many-results message yields a signal and no rows, even if
// a table is present. A page without a result table yields no rows and no
// signal.
func ParseSearchResults(r io.Reader, opts SearchOptions) ([]AlbumRow, *domain.ErrorSignal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse search page: %w", err)
	}

	if signal := detectTooManyResults(doc.Selection); signal != nil {
		return nil, signal, nil
	}

	rows := []AlbumRow{}
	doc.Find(resultsTable).First().Find(resultRow).Each(func(_ int, tr *goquery.Selection) {
		if row, ok := parseRow(tr, opts); ok {
			rows = append(rows, row)
		}
	})
	return rows, nil, nil
}

func detectTooManyResults(doc *goquery.Selection) *domain.ErrorSignal {
	if !containsFold(doc.Text(), tooManyPhrase, tooManyRefine) {
		return nil
	}

	var message string
	doc.Find("label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if containsFold(s.Text(), tooManyPhrase, tooManyRefine) {
			message = Clean(s.Text())
			return false
		}
		return true
	})

	// In document order a descendant follows its ancestors, so the last
	// element holding both phrases is the innermost one.
	if message == "" {
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			if containsFold(s.Text(), tooManyPhrase, tooManyRefine) {
				message = Clean(s.Text())
			}
		})
	}

	return &domain.ErrorSignal{Code: domain.SignalTooManyResults, Message: message}
}

func parseRow(tr *goquery.Selection, opts SearchOptions) (AlbumRow, bool) {
	cells := tr.ChildrenFiltered("td")
	if cells.Length() < minResultCells {
		return AlbumRow{}, false
	}

	row := AlbumRow{
		ID:       strings.TrimSpace(strings.ReplaceAll(tr.AttrOr("id", ""), "ID", "")),
		CoverURL: imageSource(cells.Eq(1).Find("img").First()),
	}

	titleCell := cells.Eq(2)
	row.Series = Clean(titleCell.Find("span.serie").First().Text())
	row.RawTitle = spacedText(titleCell.Find("span.titre").First())
	row.Number, row.Title = ParseTitle(row.RawTitle)

	info := cells.Eq(3)
	row.Editor = leadingText(info)
	row.Date = Clean(info.Find("span.dl").First().Text())
	row.Pages = Clean(info.Find("span.auteurs").First().Text())
	row.Collection = Clean(info.Find("span.collection").First().Text())
	row.ISBN = Clean(info.Find("span.isbn").First().Text())

	if row.ID != "" && opts.DetailURL != nil {
		row.DetailURL = opts.DetailURL(row.ID)
	}
	return row, true
}

// imageSource prefers a lazy-loading data-src over src.
func imageSource(img *goquery.Selection) string {
	if src := img.AttrOr("data-src", ""); src != "" {
		return Clean(src)
	}
	return Clean(img.AttrOr("src", ""))
}

// spacedText joins the text nodes under s with single spaces, so that
// "<b>1</b>-<i>Name</i>" reads "1 - Name" rather than "1-Name".
func spacedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return Clean(strings.Join(parts, " "))
}

// leadingText returns the cell's first child when it is a text node.
func leadingText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	first := s.Nodes[0].FirstChild
	if first == nil || first.Type != html.TextNode {
		return ""
	}
	return Clean(first.Data)
}
