// Package store holds the bounded, time-ordered, deduplicated collection of
// canonical events. All producers (both connection actors, the backfill
// fetcher) insert through one mutex-guarded critical section, because the
// dedup check-then-insert sequence is not safe to interleave.
package store

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/mirador/newswire/internal/textutil"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// DefaultMaxSize is the retained-history ceiling; the oldest events beyond
// it are evicted.
const DefaultMaxSize = 100

// prioritySources always highlight, regardless of content.
var prioritySources = map[string]bool{
	"Binance":  true,
	"Coinbase": true,
	"Upbit":    true,
	"SEC":      true,
}

// majorCoins highlight any event tagged with them.
var majorCoins = map[string]bool{
	"BTC": true,
	"ETH": true,
	"SOL": true,
	"BNB": true,
	"XRP": true,
}

// MatchFunc resolves the first matching keyword for an event, if any.
// Injected so the store stays decoupled from the alert package.
type MatchFunc func(ev *feedv1.CanonicalEvent) (feedv1.Keyword, bool)

// InsertHook observes events that were actually inserted, after enrichment.
type InsertHook func(ev *feedv1.CanonicalEvent)

type Config struct {
	MaxSize  int
	Match    MatchFunc
	OnInsert InsertHook
	Logger   *slog.Logger
}

type Store struct {
	mu     sync.Mutex
	events []*feedv1.CanonicalEvent

	maxSize  int
	match    MatchFunc
	onInsert InsertHook
	logger   *slog.Logger

	inserted   uint64
	duplicates uint64
	evicted    uint64
}

type Stats struct {
	Size       int
	Inserted   uint64
	Duplicates uint64
	Evicted    uint64
}

func New(cfg Config) *Store {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		maxSize:  cfg.MaxSize,
		match:    cfg.Match,
		onInsert: cfg.OnInsert,
		logger:   cfg.Logger.With("component", "store"),
	}
}

// Insert adds an event unless it duplicates a stored one. Dedup key priority:
// identical ID, then identical non-empty URL, then identical non-empty title.
// A suppressed insert returns false with no mutation and no side effects.
// On success the event is enriched (highlight + keyword match), the
// collection re-sorted descending by timestamp and truncated to the ceiling.
func (s *Store) Insert(ev *feedv1.CanonicalEvent) bool {
	if ev == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events {
		if existing.ID == ev.ID ||
			(ev.URL != "" && existing.URL == ev.URL) ||
			(ev.Title != "" && existing.Title == ev.Title) {
			s.duplicates++
			return false
		}
	}

	if s.match != nil && ev.MatchedKeyword == "" {
		if kw, ok := s.match(ev); ok {
			ev.MatchedKeyword = kw.Text
		}
	}
	ev.Highlighted = s.computeHighlight(ev)

	s.events = append([]*feedv1.CanonicalEvent{ev}, s.events...)
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].TimestampMs > s.events[j].TimestampMs
	})

	if len(s.events) > s.maxSize {
		s.evicted += uint64(len(s.events) - s.maxSize)
		s.events = s.events[:s.maxSize]
	}

	s.inserted++
	s.logger.Debug("event inserted",
		"id", ev.ID,
		"source", ev.SourceSystem.String(),
		"highlighted", ev.Highlighted,
	)

	if s.onInsert != nil {
		s.onInsert(ev)
	}
	return true
}

func (s *Store) computeHighlight(ev *feedv1.CanonicalEvent) bool {
	if ev.MatchedKeyword != "" {
		return true
	}
	if textutil.IsAllUpper(ev.Title) {
		return true
	}
	if prioritySources[ev.SourceLabel] {
		return true
	}
	for _, tag := range ev.Tags {
		if majorCoins[tag.Coin] {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current collection, newest first. The
// returned slice is safe for lock-free reads; the events themselves are
// immutable after publish.
func (s *Store) Snapshot() []*feedv1.CanonicalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*feedv1.CanonicalEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the current number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Size:       len(s.events),
		Inserted:   s.inserted,
		Duplicates: s.duplicates,
		Evicted:    s.evicted,
	}
}
