package textutil

import "testing"

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no entities", "plain text", "plain text"},
		{"amp", "Fish &amp; Chips", "Fish & Chips"},
		{"gt sequence", "hello &gt;&gt;QUOTE", "hello >>QUOTE"},
		{"numeric", "it&#39;s", "it's"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeEntities(tt.in); got != tt.want {
				t.Errorf("DecodeEntities(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanRepostTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips url",
			in:   "big news https://t.co/abc123 today",
			want: "big news today",
		},
		{
			name: "strips quote markers",
			in:   ">> @alice: something happened",
			want: "@alice: something happened",
		},
		{
			name: "collapses whitespace",
			in:   "a   b  https://x.co/y   c",
			want: "a b c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanRepostTitle(tt.in); got != tt.want {
				t.Errorf("CleanRepostTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsAllUpper(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"BREAKING NEWS", true},
		{"BTC +5%", true},
		{"Breaking News", false},
		{"12345", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAllUpper(tt.in); got != tt.want {
			t.Errorf("IsAllUpper(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
