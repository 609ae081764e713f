package paperbase

import (
	"testing"
)

func TestWordTokenizer_CountTokens(t *testing.T) {
	tok := NewWordTokenizer()
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello", 1},
		{"hello world", 2},
		{"hello, world!", 4}, // "hello" "," "world" "!"
		{"  spaced   out  ", 2},
		{"Đà Nẵng 1979", 3},
	}
	for _, tt := range tests {
		if got := tok.CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestWordTokenizer_EncodeDecodeRoundTrip(t *testing.T) {
	tok := NewWordTokenizer()
	ids := tok.Encode("the treaty was signed")
	if len(ids) != 4 {
		t.Fatalf("got %d ids, want 4", len(ids))
	}
	if got := tok.Decode(ids); got != "the treaty was signed" {
		t.Errorf("Decode = %q", got)
	}
}

func TestWordTokenizer_DeterministicAcrossInstances(t *testing.T) {
	a, b := NewWordTokenizer(), NewWordTokenizer()
	text := "one two three two one"
	idsA, idsB := a.Encode(text), b.Encode(text)
	if len(idsA) != len(idsB) {
		t.Fatalf("length mismatch: %d vs %d", len(idsA), len(idsB))
	}
	for i := range idsA {
		if idsA[i] != idsB[i] {
			t.Errorf("id mismatch at %d: %d vs %d", i, idsA[i], idsB[i])
		}
	}
}

func TestWordTokenizer_DecodeSkipsUnknownIDs(t *testing.T) {
	tok := NewWordTokenizer()
	tok.Encode("alpha beta")
	if got := tok.Decode([]int{0, 99, 1}); got != "alpha beta" {
		t.Errorf("Decode = %q, want %q", got, "alpha beta")
	}
}
