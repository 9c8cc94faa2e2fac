package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mirador/newswire/internal/textutil"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// RepostSourceLabel replaces the source-provided label on detected reposts.
const RepostSourceLabel = "Twitter"

type sourceAPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Image       string `json:"image"`
	Time        int64  `json:"time"`
	Suggestions []struct {
		Coin    string `json:"coin"`
		Symbols []struct {
			Exchange string `json:"exchange"`
			Symbol   string `json:"symbol"`
		} `json:"symbols"`
	} `json:"suggestions"`
	Info *struct {
		TwitterID  string `json:"twitterId"`
		Name       string `json:"name"`
		ScreenName string `json:"screenName"`
		IsReply    bool   `json:"isReply"`
		IsRetweet  bool   `json:"isRetweet"`
		IsQuote    bool   `json:"isQuote"`
		QuotedUser *struct {
			Name       string   `json:"name"`
			ScreenName string   `json:"screen_name"`
			Text       string   `json:"text"`
			Images     []string `json:"images"`
		} `json:"quotedUser"`
	} `json:"info"`
}

type SourceANormalizer struct{}

func NewSourceANormalizer() *SourceANormalizer {
	return &SourceANormalizer{}
}

func (n *SourceANormalizer) Source() feedv1.SourceSystem {
	return feedv1.SourceSystem_SOURCE_A
}

func (n *SourceANormalizer) Normalize(raw []byte) *feedv1.CanonicalEvent {
	var p sourceAPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return placeholderEvent(n.Source())
	}

	title := textutil.DecodeEntities(p.Title)
	body := textutil.DecodeEntities(p.Body)
	label := p.Source

	var social *feedv1.SocialContext
	if p.Info != nil {
		social = &feedv1.SocialContext{
			AuthorHandle: p.Info.ScreenName,
			AuthorName:   textutil.DecodeEntities(p.Info.Name),
			IsReply:      p.Info.IsReply,
			IsRetweet:    p.Info.IsRetweet,
			IsQuote:      p.Info.IsQuote,
		}
		if q := p.Info.QuotedUser; q != nil {
			social.Quoted = &feedv1.QuotedContent{
				AuthorName:   textutil.DecodeEntities(q.Name),
				AuthorHandle: q.ScreenName,
				Text:         textutil.DecodeEntities(q.Text),
				MediaURLs:    q.Images,
			}
		}
	}

	// Repost detection: identity marker plus an "@" in the title.
	if p.Info != nil && p.Info.TwitterID != "" && strings.Contains(title, "@") {
		title = textutil.CleanRepostTitle(title)
		label = RepostSourceLabel
	}

	ts := p.Time
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	id := p.ID
	if id == "" {
		id = syntheticID(n.Source(), ts)
	}

	var tags []feedv1.Tag
	for _, s := range p.Suggestions {
		tag := feedv1.Tag{Coin: s.Coin}
		for _, sym := range s.Symbols {
			tag.Pairs = append(tag.Pairs, feedv1.ExchangePair{
				Exchange: sym.Exchange,
				Symbol:   sym.Symbol,
			})
		}
		tags = append(tags, tag)
	}

	return &feedv1.CanonicalEvent{
		ID:           id,
		Title:        title,
		Body:         body,
		SourceLabel:  label,
		SourceSystem: n.Source(),
		TimestampMs:  ts,
		URL:          p.URL,
		IconURL:      p.Icon,
		ImageURL:     p.Image,
		Tags:         tags,
		Social:       social,
	}
}
