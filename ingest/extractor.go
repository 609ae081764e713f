package ingest

import "strings"

// Extractor converts raw file content to per-page plain text.
// Formats without a page concept return a single page.
type Extractor interface {
	Extract(content []byte) ([]Page, error)
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeHTML      ContentType = "text/html"
	TypeMarkdown  ContentType = "text/markdown"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// PlainTextExtractor returns content as a single page, as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) ([]Page, error) {
	return []Page{{Number: 1, Text: string(content)}}, nil
}
