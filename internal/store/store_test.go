package store

import (
	"fmt"
	"testing"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

func event(id, title, url string, ts int64) *feedv1.CanonicalEvent {
	return &feedv1.CanonicalEvent{
		ID:           id,
		Title:        title,
		URL:          url,
		SourceSystem: feedv1.SourceSystem_SOURCE_A,
		TimestampMs:  ts,
	}
}

func TestInsertDedup(t *testing.T) {
	tests := []struct {
		name   string
		first  *feedv1.CanonicalEvent
		second *feedv1.CanonicalEvent
		want   bool // second insert accepted?
	}{
		{
			name:   "same id suppressed",
			first:  event("x", "title one", "", 1),
			second: event("x", "title two", "", 2),
			want:   false,
		},
		{
			name:   "different id same url suppressed",
			first:  event("x", "title one", "https://a/1", 1),
			second: event("y", "title two", "https://a/1", 2),
			want:   false,
		},
		{
			name:   "different id same title suppressed",
			first:  event("x", "identical headline", "", 1),
			second: event("y", "identical headline", "", 2),
			want:   false,
		},
		{
			name:   "empty urls do not collide",
			first:  event("x", "title one", "", 1),
			second: event("y", "title two", "", 2),
			want:   true,
		},
		{
			name:   "distinct event accepted",
			first:  event("x", "title one", "https://a/1", 1),
			second: event("y", "title two", "https://a/2", 2),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{})
			if !s.Insert(tt.first) {
				t.Fatal("first insert rejected")
			}
			if got := s.Insert(tt.second); got != tt.want {
				t.Errorf("second insert = %v, want %v", got, tt.want)
			}

			wantLen := 1
			if tt.want {
				wantLen = 2
			}
			if s.Len() != wantLen {
				t.Errorf("store size = %d, want %d", s.Len(), wantLen)
			}
		})
	}
}

func TestInsertOrdering(t *testing.T) {
	s := New(Config{})

	// Out-of-order arrival.
	s.Insert(event("a", "t1", "", 100))
	s.Insert(event("b", "t2", "", 300))
	s.Insert(event("c", "t3", "", 200))

	snap := s.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1].TimestampMs < snap[i].TimestampMs {
			t.Fatalf("snapshot not sorted descending at %d: %d < %d",
				i, snap[i-1].TimestampMs, snap[i].TimestampMs)
		}
	}
	if snap[0].ID != "b" {
		t.Errorf("newest = %s, want b", snap[0].ID)
	}
}

func TestBoundEvictsOldest(t *testing.T) {
	s := New(Config{MaxSize: 5})

	for i := 0; i < 20; i++ {
		s.Insert(event(fmt.Sprintf("id-%d", i), fmt.Sprintf("title %d", i), "", int64(i)))
	}

	if s.Len() != 5 {
		t.Fatalf("store size = %d, want 5", s.Len())
	}
	snap := s.Snapshot()
	if snap[len(snap)-1].TimestampMs != 15 {
		t.Errorf("oldest retained = %d, want 15", snap[len(snap)-1].TimestampMs)
	}

	stats := s.Stats()
	if stats.Evicted != 15 {
		t.Errorf("evicted = %d, want 15", stats.Evicted)
	}
}

func TestDuplicateHasNoSideEffects(t *testing.T) {
	var hookCalls int
	s := New(Config{
		OnInsert: func(*feedv1.CanonicalEvent) { hookCalls++ },
	})

	s.Insert(event("x", "headline", "https://a/1", 1))
	s.Insert(event("y", "other", "https://a/1", 2))

	if hookCalls != 1 {
		t.Errorf("insert hook calls = %d, want 1", hookCalls)
	}
	if s.Stats().Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", s.Stats().Duplicates)
	}
}

func TestHighlightHeuristics(t *testing.T) {
	tests := []struct {
		name string
		ev   *feedv1.CanonicalEvent
		want bool
	}{
		{
			name: "all caps title",
			ev:   event("1", "HACK ALERT", "", 1),
			want: true,
		},
		{
			name: "priority source",
			ev: &feedv1.CanonicalEvent{
				ID: "2", Title: "routine filing", SourceLabel: "SEC", TimestampMs: 1,
			},
			want: true,
		},
		{
			name: "major coin tag",
			ev: &feedv1.CanonicalEvent{
				ID: "3", Title: "market note", TimestampMs: 1,
				Tags: []feedv1.Tag{{Coin: "BTC"}},
			},
			want: true,
		},
		{
			name: "plain event",
			ev:   event("4", "quiet tuesday", "", 1),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{})
			s.Insert(tt.ev)
			if tt.ev.Highlighted != tt.want {
				t.Errorf("Highlighted = %v, want %v", tt.ev.Highlighted, tt.want)
			}
		})
	}
}

func TestKeywordMatchSetsFieldAndHighlights(t *testing.T) {
	s := New(Config{
		Match: func(ev *feedv1.CanonicalEvent) (feedv1.Keyword, bool) {
			return feedv1.Keyword{ID: "k1", Text: "listing"}, true
		},
	})

	ev := event("1", "new listing announced", "", 1)
	s.Insert(ev)

	if ev.MatchedKeyword != "listing" {
		t.Errorf("MatchedKeyword = %q, want listing", ev.MatchedKeyword)
	}
	if !ev.Highlighted {
		t.Error("keyword match must highlight")
	}
}
