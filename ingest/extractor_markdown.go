package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var _ Extractor = (*MarkdownExtractor)(nil)

// MarkdownExtractor implements Extractor for Markdown documents. The
// source is parsed to an AST and flattened to plain text: formatting
// markers disappear, block boundaries become paragraph breaks, link
// text survives without its URL. The whole document becomes one page.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdownExtractor creates a Markdown extractor with table and
// strikethrough support.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

func (e *MarkdownExtractor) Extract(content []byte) ([]Page, error) {
	doc := e.md.Parser().Parse(text.NewReader(content))

	var buf strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(content))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				writeCodeLines(&buf, n, content)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.URL(content))
			}
		}
		if !entering && n.Type() == ast.TypeBlock {
			buf.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}

	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: out}}, nil
}

func writeCodeLines(buf *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
}
