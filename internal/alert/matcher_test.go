package alert

import (
	"testing"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

func TestFindMatch(t *testing.T) {
	keywords := []feedv1.Keyword{
		{ID: "1", Text: "listing"},
		{ID: "2", Text: "hack"},
		{ID: "3", Text: "ETF"},
	}

	tests := []struct {
		name    string
		ev      *feedv1.CanonicalEvent
		want    string
		wantHit bool
	}{
		{
			name:    "title match",
			ev:      &feedv1.CanonicalEvent{Title: "New Listing on Exchange"},
			want:    "listing",
			wantHit: true,
		},
		{
			name:    "body match",
			ev:      &feedv1.CanonicalEvent{Title: "alert", Body: "possible HACK underway"},
			want:    "hack",
			wantHit: true,
		},
		{
			name:    "case insensitive",
			ev:      &feedv1.CanonicalEvent{Title: "etf approval imminent"},
			want:    "ETF",
			wantHit: true,
		},
		{
			name:    "list order breaks ties",
			ev:      &feedv1.CanonicalEvent{Title: "listing halted after hack"},
			want:    "listing",
			wantHit: true,
		},
		{
			name: "no match",
			ev:   &feedv1.CanonicalEvent{Title: "quiet day", Body: "nothing happened"},
		},
		{
			name: "nil event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw, ok := FindMatch(tt.ev, keywords)
			if ok != tt.wantHit {
				t.Fatalf("ok = %v, want %v", ok, tt.wantHit)
			}
			if ok && kw.Text != tt.want {
				t.Errorf("keyword = %q, want %q", kw.Text, tt.want)
			}
		})
	}
}

func TestFindMatchSkipsBlankKeywords(t *testing.T) {
	keywords := []feedv1.Keyword{
		{ID: "1", Text: "   "},
		{ID: "2", Text: "real"},
	}

	kw, ok := FindMatch(&feedv1.CanonicalEvent{Title: "a real story"}, keywords)
	if !ok || kw.ID != "2" {
		t.Errorf("got %+v ok=%v, want keyword 2", kw, ok)
	}
}
