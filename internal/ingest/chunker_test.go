package ingest

import (
	"strings"
	"testing"
)

func TestChunker_Chunk(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		words   int
		want    []string
	}{
		{
			name: "fits in one chunk",
			size: 10, overlap: 2, words: 5,
			want: []string{"w1 w2 w3 w4 w5"},
		},
		{
			name: "overlapping windows",
			size: 4, overlap: 2, words: 8,
			want: []string{"w1 w2 w3 w4", "w3 w4 w5 w6", "w5 w6 w7 w8"},
		},
		{
			name: "partial final chunk",
			size: 4, overlap: 1, words: 6,
			want: []string{"w1 w2 w3 w4", "w4 w5 w6"},
		},
		{
			name: "overlap equal to size still advances",
			size: 2, overlap: 2, words: 3,
			want: []string{"w1 w2", "w2 w3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := make([]string, tt.words)
			for i := range words {
				words[i] = "w" + string(rune('1'+i))
			}
			c := NewChunker(tt.size, tt.overlap)
			got := c.Chunk(strings.Join(words, " "))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(4, 1)
	if got := c.Chunk("   \n\t "); got != nil {
		t.Errorf("whitespace-only text produced %v", got)
	}
}

func TestChunker_CollapsesWhitespace(t *testing.T) {
	c := NewChunker(10, 0)
	got := c.Chunk("an  toàn\nthông\ttin")
	if len(got) != 1 || got[0] != "an toàn thông tin" {
		t.Errorf("got %v", got)
	}
}
