package slackio

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want int // chunk count
	}{
		{"short text single chunk", "hello world", 100, 1},
		{"empty text no chunks", "   ", 100, 0},
		{"splits on paragraphs", strings.Repeat("para one\n\n", 30), 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.max)
			if len(chunks) != tt.want {
				t.Errorf("got %d chunks, want %d: %q", len(chunks), tt.want, chunks)
			}
			for i, c := range chunks {
				if len(c) > tt.max {
					t.Errorf("chunk %d exceeds max: %d > %d", i, len(c), tt.max)
				}
			}
		})
	}
}

func TestChunkTextPreservesOrderAndContent(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
	chunks := ChunkText(text, 20)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks: %q", len(chunks), chunks)
	}
	if chunks[0] != "first paragraph" || chunks[1] != "second paragraph" || chunks[2] != "third paragraph" {
		t.Errorf("chunks out of order or mangled: %q", chunks)
	}
}

func TestChunkTextHardSplitWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != 250 {
		t.Errorf("content lost in split: %d bytes total, want 250", total)
	}
}
