// Package feedv1 defines the canonical event model that every feed source
// normalizes into. Consumers (store, matcher, sinks) only ever see this shape.
package feedv1

type SourceSystem int32

const (
	SourceSystem_SOURCE_UNSPECIFIED SourceSystem = 0
	SourceSystem_SOURCE_A           SourceSystem = 1
	SourceSystem_SOURCE_B           SourceSystem = 2
)

func (s SourceSystem) String() string {
	switch s {
	case SourceSystem_SOURCE_A:
		return "source-a"
	case SourceSystem_SOURCE_B:
		return "source-b"
	default:
		return "unspecified"
	}
}

// ExchangePair names a tradeable symbol on a specific exchange.
type ExchangePair struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
}

// Tag is a coin/topic suggestion attached to an event, with the venues it
// trades on. Order is preserved from the source.
type Tag struct {
	Coin  string         `json:"coin"`
	Pairs []ExchangePair `json:"pairs,omitempty"`
}

// QuotedContent is the nested quoted post inside a repost/quote event.
type QuotedContent struct {
	AuthorName   string   `json:"author_name,omitempty"`
	AuthorHandle string   `json:"author_handle,omitempty"`
	Text         string   `json:"text,omitempty"`
	MediaURLs    []string `json:"media_urls,omitempty"`
}

// SocialContext carries repost/quote metadata for events that originate from
// social posts rather than headlines.
type SocialContext struct {
	AuthorHandle string         `json:"author_handle,omitempty"`
	AuthorName   string         `json:"author_name,omitempty"`
	IsReply      bool           `json:"is_reply,omitempty"`
	IsRetweet    bool           `json:"is_retweet,omitempty"`
	IsQuote      bool           `json:"is_quote,omitempty"`
	Quoted       *QuotedContent `json:"quoted,omitempty"`
}

// CanonicalEvent is the normalized news/alert unit.
//
// Invariants: ID is unique within the reconciled store at any time;
// TimestampMs is never mutated after insertion; SourceSystem is set exactly
// once at adapter output and never inferred afterwards. Highlighted and
// MatchedKeyword are derived at insertion time, never source-provided.
type CanonicalEvent struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	Body         string         `json:"body,omitempty"`
	SourceLabel  string         `json:"source_label,omitempty"`
	SourceSystem SourceSystem   `json:"source_system"`
	TimestampMs  int64          `json:"timestamp_ms"`
	URL          string         `json:"url,omitempty"`
	IconURL      string         `json:"icon_url,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Tags         []Tag          `json:"tags,omitempty"`
	Social       *SocialContext `json:"social,omitempty"`

	Highlighted    bool   `json:"highlighted"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
}

// IsRepost reports whether the event is reposted/quoted social content.
func (e *CanonicalEvent) IsRepost() bool {
	if e.Social == nil {
		return false
	}
	return e.Social.IsRetweet || e.Social.IsQuote
}

// Keyword is a user-managed filter term. Matching is case-insensitive
// substring over title and body.
type Keyword struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
