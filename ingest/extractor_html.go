package ingest

import (
	"bytes"
	"fmt"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

var _ Extractor = (*HTMLExtractor)(nil)

// HTMLExtractor implements Extractor for HTML documents using readability
// article extraction, which strips navigation, scripts, and boilerplate.
// The whole document becomes one page.
type HTMLExtractor struct {
	baseURL *url.URL
}

// NewHTMLExtractor creates an HTML extractor. baseURL resolves relative
// references during readability parsing; empty is fine for local files.
func NewHTMLExtractor(baseURL string) *HTMLExtractor {
	u, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		u, _ = url.Parse("about:blank")
	}
	return &HTMLExtractor{baseURL: u}
}

func (e *HTMLExtractor) Extract(content []byte) ([]Page, error) {
	article, err := readability.FromReader(bytes.NewReader(content), e.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if article.TextContent == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: article.TextContent}}, nil
}
