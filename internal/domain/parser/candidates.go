package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is one entry of a series autocomplete answer.
type Candidate struct {
	ID       string
	Name     string
	Country  string
	CoverURL string
	URL      string
}

var seriesIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`serie-(\d+)`),
	regexp.MustCompile(`4050-(\d+)`),
	regexp.MustCompile(`(\d+)`),
}

// ParseSeriesCandidates decodes an autocomplete response that may be JSON or
// an HTML fragment of list items. Entries without a name are skipped.
func ParseSeriesCandidates(body []byte, contentType string) ([]Candidate, error) {
	if looksLikeJSON(body, contentType) {
		return parseJSONCandidates(body)
	}
	return parseHTMLCandidates(body)
}

// looksLikeJSON sniffs the first non-whitespace byte and falls back to the
// declared content type when the body starts with neither markup nor JSON.
func looksLikeJSON(body []byte, contentType string) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[', '{':
			return true
		case '<':
			return false
		}
	}
	return strings.Contains(strings.ToLower(contentType), "json")
}

func parseJSONCandidates(body []byte) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []Candidate{}, nil
	}

	var entries []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode candidate object: %w", err)
		}
		entries = []json.RawMessage{trimmed}
		for _, key := range []string{"results", "series", "items", "data"} {
			var list []json.RawMessage
			if raw, ok := obj[key]; ok && json.Unmarshal(raw, &list) == nil {
				entries = list
				break
			}
		}
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, raw := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		c := Candidate{
			ID:       jsonString(fields, "id"),
			Name:     jsonString(fields, "label", "name", "value"),
			Country:  jsonString(fields, "flag", "country"),
			CoverURL: jsonImage(fields, "cover", "image"),
			URL:      jsonString(fields, "url", "link", "site_detail_url"),
		}
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = idFromLink(c.URL)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// jsonString returns the first key holding a non-empty string or number.
func jsonString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return Clean(s)
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil && n != "" {
			return n.String()
		}
	}
	return ""
}

// jsonImage accepts a plain URL or an image object with size variants.
func jsonImage(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return Clean(s)
		}
		var variants map[string]json.RawMessage
		if json.Unmarshal(raw, &variants) == nil {
			if u := jsonString(variants, "original_url", "super_url", "medium_url", "small_url", "thumb_url"); u != "" {
				return u
			}
		}
	}
	return ""
}

func parseHTMLCandidates(body []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse candidate fragment: %w", err)
	}

	candidates := []Candidate{}
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find("a[href]").First()

		name := Clean(li.Find(".name").First().Text())
		if name == "" {
			name = Clean(link.Text())
		}
		if name == "" {
			return
		}

		c := Candidate{
			Name: name,
			URL:  Clean(link.AttrOr("href", "")),
		}
		c.ID = li.AttrOr("data-id", link.AttrOr("data-id", ""))
		if c.ID == "" {
			c.ID = idFromLink(c.URL)
		}

		if flag := li.Find("img.flag").First(); flag.Length() > 0 {
			c.Country = Clean(flag.AttrOr("title", flag.AttrOr("alt", "")))
		} else if flag := li.Find(".flag").First(); flag.Length() > 0 {
			c.Country = Clean(flag.AttrOr("title", flag.Text()))
		}

		c.CoverURL = imageSource(li.Find("img").Not(".flag").First())
		candidates = append(candidates, c)
	})
	return candidates, nil
}

func idFromLink(link string) string {
	if link == "" {
		return ""
	}
	for _, re := range seriesIDPatterns {
		if m := re.FindStringSubmatch(link); m != nil {
			if _, err := strconv.Atoi(m[1]); err == nil {
				return m[1]
			}
		}
	}
	return ""
}
