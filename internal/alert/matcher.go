// Package alert evaluates canonical events against user keyword filters and
// dispatches deduplicated notifications to a pluggable sink.
package alert

import (
	"strings"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// FindMatch returns the first keyword whose text occurs (case-insensitive)
// in the event's title or body. Keyword list order is the tie-break.
func FindMatch(ev *feedv1.CanonicalEvent, keywords []feedv1.Keyword) (feedv1.Keyword, bool) {
	if ev == nil || len(keywords) == 0 {
		return feedv1.Keyword{}, false
	}

	title := strings.ToLower(ev.Title)
	body := strings.ToLower(ev.Body)

	for _, kw := range keywords {
		text := strings.ToLower(strings.TrimSpace(kw.Text))
		if text == "" {
			continue
		}
		if strings.Contains(title, text) || strings.Contains(body, text) {
			return kw, true
		}
	}
	return feedv1.Keyword{}, false
}
