package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"comic-catalog-provider/internal/domain"
)

// SynopsisKey is the detail key holding the album synopsis.
const SynopsisKey = "Résumé"

// ParseDetailPage extracts the labelled fields of an album detail page.
// A page without the info container yields an empty mapping.
func ParseDetailPage(r io.Reader) (domain.Details, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	details := domain.Details{}
	root := doc.Find("div.col-infos").First()
	if root.Length() == 0 {
		return details, nil
	}

	root.Find("ul.infos").First().Find("li").Each(func(_ int, li *goquery.Selection) {
		label := li.Find("label").First()
		if label.Length() == 0 {
			return
		}
		key := strings.TrimSpace(strings.TrimRight(Clean(label.Text()), ":"))
		if key == "" {
			return
		}
		label.Remove()

		value := Clean(li.Text())
		if value == "" {
			if a := li.Find("a").First(); a.Length() > 0 {
				value = Clean(a.Text())
			}
			if title, ok := li.Find("i").First().Attr("title"); ok {
				value = Clean(title)
			}
		}
		details.Add(key, value)
	})

	if synopsis := root.Find("#ResumeAffiche").First(); synopsis.Length() > 0 {
		details.Add(SynopsisKey, Clean(synopsis.Text()))
	}

	return details, nil
}
