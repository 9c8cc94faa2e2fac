package normalize

import (
	"regexp"
	"strings"
)

// QuoteMarker separates main content from quoted content in Source-B bodies.
// It arrives entity-escaped on the wire ("&gt;&gt;QUOTE") and is matched
// after entity decoding.
const QuoteMarker = ">>QUOTE"

// quotedUserPattern matches the "Name (@handle" prefix that precedes the
// first closing parenthesis of a quote segment.
var quotedUserPattern = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9_]+)$`)

// QuoteResult is the outcome of parsing a quote segment. Either the segment
// parsed into author/text, or it did not and Raw holds the unparsed content.
// There is no error case: callers degrade, they never throw.
type QuoteResult struct {
	Parsed       bool
	AuthorName   string
	AuthorHandle string
	Text         string
	Raw          string
}

// ParseQuote splits a quote segment of the form "Name (@handle) text" at the
// first closing parenthesis. A missing parenthesis yields Unparsed; a prefix
// that does not match the Name/@handle pattern keeps the whole prefix as the
// author name.
func ParseQuote(segment string) QuoteResult {
	segment = strings.TrimSpace(segment)

	idx := strings.Index(segment, ")")
	if idx < 0 {
		return QuoteResult{Raw: segment}
	}

	userInfo := strings.TrimSpace(segment[:idx])
	text := strings.TrimSpace(segment[idx+1:])

	if m := quotedUserPattern.FindStringSubmatch(userInfo); m != nil {
		return QuoteResult{
			Parsed:       true,
			AuthorName:   strings.TrimSpace(m[1]),
			AuthorHandle: m[2],
			Text:         text,
		}
	}

	// Permissive fallback: the whole prefix is the name.
	return QuoteResult{
		Parsed:     true,
		AuthorName: userInfo,
		Text:       text,
	}
}
