// Package textutil provides stateless text cleanup helpers shared by the
// format adapters: HTML-entity decoding, URL/quote-marker stripping, and
// content heuristics.
package textutil

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	quoteMarkerPattern = regexp.MustCompile(`(?:>>|»)\s*`)
	spacePattern       = regexp.MustCompile(`\s{2,}`)
)

// DecodeEntities resolves HTML entities (&amp;, &gt;, &#39;, ...) in s.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}

// StripURLs removes embedded http(s) URLs.
func StripURLs(s string) string {
	return urlPattern.ReplaceAllString(s, "")
}

// StripQuoteMarkers removes inline quote markers (">>", "»").
func StripQuoteMarkers(s string) string {
	return quoteMarkerPattern.ReplaceAllString(s, "")
}

// CleanRepostTitle strips URLs and quote markers from a repost title and
// collapses the leftover whitespace.
func CleanRepostTitle(s string) string {
	s = StripURLs(s)
	s = StripQuoteMarkers(s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsAllUpper reports whether s contains at least one letter and no lowercase
// letters. Digits, punctuation and whitespace are ignored.
func IsAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
