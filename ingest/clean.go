package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Page is one page of raw text produced by an extractor.
type Page struct {
	Number int
	Text   string
}

var (
	hyphenWrapRE = regexp.MustCompile(`([\pL\pN])[ \t]*-[ \t]*\n[ \t]*([\pL\pN])`)
	multiBreakRE = regexp.MustCompile(`\n{3,}`)
	hspaceRE     = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// Clean repairs extraction artifacts in raw page text: hyphenated word
// wraps are rejoined, stray single newlines become spaces, and runs of
// blank lines collapse to a single paragraph boundary. Text is normalized
// to NFC so diacritics compare consistently downstream.
//
// Empty input yields empty output.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)

	// Unify line endings before any newline-sensitive repair.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// Rejoin words broken across lines with a hyphen: "infor-\nmation".
	text = hyphenWrapRE.ReplaceAllString(text, "$1$2")

	// Three or more breaks mark the same paragraph boundary as two.
	text = multiBreakRE.ReplaceAllString(text, "\n\n")

	// Lone newlines are layout wraps, not paragraph breaks. Shield the
	// double breaks, flatten the rest, restore.
	text = strings.ReplaceAll(text, "\n\n", "\x00")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\x00", "\n\n")

	text = hspaceRE.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
