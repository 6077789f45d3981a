package parser

import (
	"log/slog"
	"regexp"
	"strings"
)

// Title grammar, first match wins. Rule order matters: the last rule is broad
// enough to misread titles that contain digits before the separator.
var titleRules = []*regexp.Regexp{
	// "1 - Name", "-1 - Name"
	regexp.MustCompile(`^-?\s*(\d+)\s*-\s*(.+)$`),
	// "-13 ' - Name": stray quotes or punctuation before the dash
	regexp.MustCompile("^-?\\s*(\\d+)\\s*['’‘´`\".,;:]+\\s*-\\s*(.+)$"),
	// "13- Name"
	regexp.MustCompile(`^(\d+)\s*-\s*(.+)$`),
	// "Tome 4 (HS) - Name": first digit run anywhere, then a dash
	regexp.MustCompile(`^.*?(\d+).*?-\s*(.+)$`),
}

// ParseTitle splits a raw album title into its number and name. When no
// rule matches it returns an empty number and the whole cleaned title.
func ParseTitle(raw string) (number, name string) {
	title := Clean(raw)
	for _, rule := range titleRules {
		m := rule.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if rest := strings.TrimSpace(m[2]); rest != "" {
			return m[1], rest
		}
	}
	if title != "" {
		slog.Debug("Album title did not match any number pattern", "title", title)
	}
	return "", title
}
