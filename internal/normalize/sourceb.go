package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mirador/newswire/internal/textutil"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

type sourceBPayload struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	Icon        string   `json:"icon"`
	Image       string   `json:"image"`
	Time        int64    `json:"time"`
	Symbols     []string `json:"symbols"`
	Suggestions []struct {
		Coin    string `json:"coin"`
		Symbols []struct {
			Exchange string `json:"exchange"`
			Symbol   string `json:"symbol"`
		} `json:"symbols"`
	} `json:"suggestions"`
}

type SourceBNormalizer struct{}

func NewSourceBNormalizer() *SourceBNormalizer {
	return &SourceBNormalizer{}
}

func (n *SourceBNormalizer) Source() feedv1.SourceSystem {
	return feedv1.SourceSystem_SOURCE_B
}

func (n *SourceBNormalizer) Normalize(raw []byte) *feedv1.CanonicalEvent {
	var p sourceBPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return placeholderEvent(n.Source())
	}

	title := textutil.DecodeEntities(p.Title)
	body := textutil.DecodeEntities(p.Body)

	var social *feedv1.SocialContext
	if idx := strings.Index(body, QuoteMarker); idx >= 0 {
		main := strings.TrimSpace(body[:idx])
		quote := ParseQuote(body[idx+len(QuoteMarker):])

		switch {
		case quote.Parsed:
			if main != "" {
				title = main
			}
			body = ""
			social = &feedv1.SocialContext{
				IsQuote: true,
				Quoted: &feedv1.QuotedContent{
					AuthorName:   textutil.DecodeEntities(quote.AuthorName),
					AuthorHandle: quote.AuthorHandle,
					Text:         textutil.DecodeEntities(quote.Text),
				},
			}
		default:
			// Conservative degrade: the entire body becomes the title,
			// no quoted content.
			title = strings.Join(strings.Fields(strings.Replace(body, QuoteMarker, " ", 1)), " ")
			body = ""
		}
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
	for _, sym := range p.Symbols {
		tags = append(tags, feedv1.Tag{Coin: coinFromSymbol(sym)})
	}

	return &feedv1.CanonicalEvent{
		ID:           id,
		Title:        title,
		Body:         body,
		SourceLabel:  p.Source,
		SourceSystem: n.Source(),
		TimestampMs:  ts,
		URL:          p.URL,
		IconURL:      p.Icon,
		ImageURL:     p.Image,
		Tags:         tags,
		Social:       social,
	}
}

// coinFromSymbol strips a known quote-currency suffix from a bare symbol so
// "BTCUSDT" tags as "BTC". Unknown shapes pass through unchanged.
func coinFromSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range []string{"USDT", "USDC", "USD", "BUSD"} {
		if base, ok := strings.CutSuffix(symbol, suffix); ok && base != "" {
			return base
		}
	}
	return symbol
}
