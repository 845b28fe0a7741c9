package ui

import (
	"regexp"
	"strings"
)

// Markers wrapped around matches by Highlight.
const (
	MarkOpen  = "\x1b[7m"
	MarkClose = "\x1b[27m"
)

// Highlight wraps every case-insensitive occurrence of the space-separated
// terms in text with before and after. Terms are matched literally.
func Highlight(text, terms, before, after string) string {
	if text == "" || strings.TrimSpace(terms) == "" {
		return text
	}
	fields := strings.Fields(terms)
	quoted := make([]string, len(fields))
	for i, t := range fields {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, before+"${1}"+after)
}
