package paperbase

import (
	"strings"
	"sync"
	"unicode"
)

// WordTokenizer is a local Tokenizer for offline use and tests. It splits
// text into word and punctuation pieces and interns them, so Encode/Decode
// round-trip deterministically within one instance. Token counts approximate
// a subword model closely enough for chunk budgeting; swap in a remote
// tokenizer client when exact counts for a specific model matter.
type WordTokenizer struct {
	mu     sync.Mutex
	ids    map[string]int
	pieces []string
}

var _ Tokenizer = (*WordTokenizer)(nil)

// NewWordTokenizer creates an empty tokenizer. Ids are assigned in first-seen
// order, so two instances fed the same text sequence agree.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{ids: make(map[string]int)}
}

// Encode converts text to token ids, interning unseen pieces.
func (t *WordTokenizer) Encode(text string) []int {
	pieces := splitPieces(text)
	if len(pieces) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, len(pieces))
	for i, p := range pieces {
		id, ok := t.ids[p]
		if !ok {
			id = len(t.pieces)
			t.ids[p] = id
			t.pieces = append(t.pieces, p)
		}
		ids[i] = id
	}
	return ids
}

// Decode converts token ids back to text. Unknown ids are skipped.
// Pieces are joined with single spaces; the original spacing is not preserved.
func (t *WordTokenizer) Decode(ids []int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < len(t.pieces) {
			parts = append(parts, t.pieces[id])
		}
	}
	return strings.Join(parts, " ")
}

// CountTokens returns the piece count without touching the intern table.
func (t *WordTokenizer) CountTokens(text string) int {
	return len(splitPieces(text))
}

// splitPieces cuts text into letter/digit runs and single punctuation marks.
func splitPieces(text string) []string {
	var pieces []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			pieces = append(pieces, run.String())
			run.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			run.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			pieces = append(pieces, string(r))
		}
	}
	flush()
	return pieces
}
