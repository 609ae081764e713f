package ingest

import (
	"strings"
	"unicode"
)

// Sentence is one segmented sentence with the page it started on.
type Sentence struct {
	Text string
	Page int
}

// Terminal punctuation that can end a sentence.
func isTerminalPunct(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

// Final words that end in a period without ending a sentence. Matched
// case-insensitively against the last whitespace-delimited word.
var sentenceAbbreviations = map[string]bool{
	"tp.": true, "mr.": true, "mrs.": true, "dr.": true,
	"ths.": true, "ts.": true, "prof.": true,
	"vol.": true, "p.": true, "pp.": true, "st.": true,
}

// SplitSentences splits cleaned text into trimmed, non-empty sentences.
// A boundary is a run of terminal punctuation followed by whitespace and
// an upper-case letter; requiring the upper-case continuation avoids
// false splits after abbreviations and mid-fragment periods.
func SplitSentences(text string) []string {
	runes := []rune(text)
	n := len(runes)

	var sentences []string
	start := 0
	i := 0
	for i < n {
		if !isTerminalPunct(runes[i]) {
			i++
			continue
		}
		// Consume the whole punctuation run ("?!", "...").
		end := i + 1
		for end < n && isTerminalPunct(runes[end]) {
			end++
		}
		// Boundary only when whitespace then an upper-case letter follows.
		j := end
		for j < n && unicode.IsSpace(runes[j]) {
			j++
		}
		if j > end && j < n && unicode.IsUpper(runes[j]) {
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				sentences = append(sentences, s)
			}
			start = j
		}
		i = end
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// IsCompleteSentence reports whether a fragment looks like a true sentence
// end rather than a truncation artifact. Incomplete: no terminal
// punctuation, a digit directly before the terminal mark ("Article 12."),
// or a final word from the abbreviation set ("Dr.", "vol.").
func IsCompleteSentence(fragment string) bool {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return false
	}
	runes := []rune(fragment)
	last := runes[len(runes)-1]
	if !isTerminalPunct(last) {
		return false
	}
	if len(runes) >= 2 && unicode.IsDigit(runes[len(runes)-2]) {
		return false
	}
	words := strings.Fields(fragment)
	if len(words) > 0 && sentenceAbbreviations[strings.ToLower(words[len(words)-1])] {
		return false
	}
	return true
}

// Segmenter turns a sequence of pages into document-ordered sentences.
// An incomplete trailing fragment on one page is carried forward and
// prefixed onto the next page before re-segmenting, since page boundaries
// frequently split sentences mid-word or mid-clause. A sentence completed
// on a later page keeps the page it started on.
type Segmenter struct{}

// Segment returns the sentences of all pages in order. Leftover carry
// after the final page is emitted as one trailing sentence.
func (Segmenter) Segment(pages []Page) []Sentence {
	var out []Sentence
	carry := ""
	carryPage := 0

	for _, page := range pages {
		text := Clean(page.Text)
		startPage := page.Number
		if carry != "" {
			text = joinCarry(carry, text)
			startPage = carryPage
			carry = ""
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		fragments := SplitSentences(text)
		if len(fragments) == 0 {
			continue
		}
		last := len(fragments) - 1
		if !IsCompleteSentence(fragments[last]) {
			carry = fragments[last]
			if last == 0 {
				carryPage = startPage
			} else {
				carryPage = page.Number
			}
			fragments = fragments[:last]
		}
		for k, f := range fragments {
			p := page.Number
			if k == 0 {
				p = startPage
			}
			out = append(out, Sentence{Text: f, Page: p})
		}
	}

	if strings.TrimSpace(carry) != "" {
		out = append(out, Sentence{Text: carry, Page: carryPage})
	}
	return out
}

// joinCarry glues a carried fragment onto the next page's text. A carry
// ending in a hyphen was split mid-word, so the hyphen is dropped and the
// texts concatenated directly; otherwise a single space joins them.
func joinCarry(carry, next string) string {
	if strings.HasSuffix(carry, "-") {
		return strings.TrimSuffix(carry, "-") + next
	}
	if next == "" {
		return carry
	}
	return carry + " " + next
}
