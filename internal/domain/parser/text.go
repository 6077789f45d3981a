package parser

import (
	"html"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Clean decodes HTML entities, composes accents (NFC) and collapses every
// whitespace run to a single space.
func Clean(s string) string {
	return collapseSpace(norm.NFC.String(html.UnescapeString(s)))
}

// collapseSpace joins the whitespace-separated fields of s. strings.Fields
// splits on unicode.IsSpace, which covers U+00A0.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// containsFold reports whether s contains every needle, ignoring case and
// treating any whitespace run (line breaks, no-break spaces) as one space.
func containsFold(s string, needles ...string) bool {
	folded := folder.String(collapseSpace(norm.NFC.String(s)))
	for _, n := range needles {
		if !strings.Contains(folded, folder.String(n)) {
			return false
		}
	}
	return true
}
