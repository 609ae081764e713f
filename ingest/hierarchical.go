package ingest

import (
	"fmt"
	"strings"

	paperbase "github.com/dqviet/paperbase"
)

// ReturnLevel selects the output shape of a hierarchical chunking run.
type ReturnLevel string

const (
	ReturnCoarse ReturnLevel = "coarse" // parents only
	ReturnFine   ReturnLevel = "fine"   // children only
	ReturnBoth   ReturnLevel = "both"   // parents followed by children, flat
)

// Paragraph is the atomic packing unit: never split across coarse chunks.
type Paragraph struct {
	Text   string
	Tokens int
	Page   int
}

// ParentChunk is a coarse chunk with its fine children attached, the
// nested return shape.
type ParentChunk struct {
	paperbase.Chunk
	Children []paperbase.Chunk
}

// HierarchicalChunker packs paragraphs into token-bounded coarse chunks
// with a token-bounded overlap between consecutive parents, then runs the
// sentence-window chunker inside each parent to produce linked fine
// chunks. Coarse chunks carry page-accurate provenance; fine chunks
// inherit their parent's page range rather than computing their own.
type HierarchicalChunker struct {
	tok  paperbase.Tokenizer
	fine *SentenceChunker
	cfg  chunkerConfig
}

// NewHierarchicalChunker creates a two-level chunker.
func NewHierarchicalChunker(tok paperbase.Tokenizer, opts ...ChunkerOption) *HierarchicalChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &HierarchicalChunker{
		tok:  tok,
		fine: NewSentenceChunker(tok, WithFineChunkSize(cfg.fineChunkSize), WithOverlapSentences(cfg.overlapSentences)),
		cfg:  cfg,
	}
}

// Chunk runs the chunker and returns the requested flat shape. An empty
// or whitespace-only page set yields nil. A coarse-only request skips the
// per-parent fine pass entirely. Use ChunkNested for the parent objects
// with children attached.
func (h *HierarchicalChunker) Chunk(pages []Page, level ReturnLevel) []paperbase.Chunk {
	parents := h.chunkParents(pages, level != ReturnCoarse)
	var out []paperbase.Chunk
	for _, p := range parents {
		if level == ReturnCoarse || level == ReturnBoth {
			out = append(out, p.Chunk)
		}
	}
	for _, p := range parents {
		if level == ReturnFine || level == ReturnBoth {
			out = append(out, p.Children...)
		}
	}
	return out
}

// ChunkNested runs both levels and returns parents with their children.
func (h *HierarchicalChunker) ChunkNested(pages []Page) []ParentChunk {
	return h.chunkParents(pages, true)
}

func (h *HierarchicalChunker) chunkParents(pages []Page, withChildren bool) []ParentChunk {
	paras := h.Paragraphs(pages)
	if len(paras) == 0 {
		return nil
	}

	var parents []ParentChunk
	childN := 0
	start := 0
	for start < len(paras) {
		// Admit paragraphs until the budget would be exceeded. The first
		// paragraph is always admitted, even when it alone overshoots.
		end := start
		tokens := 0
		for end < len(paras) {
			if end > start && tokens+paras[end].Tokens > h.cfg.coarseTarget {
				break
			}
			tokens += paras[end].Tokens
			end++
		}

		parent := h.buildParent(len(parents), paras[start:end], tokens)
		if withChildren {
			parent.Children = h.chunkChildren(&parent.Chunk, &childN)
		}
		parents = append(parents, parent)

		if end >= len(paras) {
			break
		}

		// Overlap: scan backward from the last admitted paragraph until
		// the trailing token count reaches the overlap budget.
		next := end
		overlap := 0
		for next > start && overlap < h.cfg.coarseOverlap {
			next--
			overlap += paras[next].Tokens
		}
		if next <= start {
			// The whole parent would repeat; force progress.
			next = start + 1
		}
		start = next
	}
	return parents
}

// Paragraphs cleans each page and splits it on blank-line boundaries.
// Whitespace-only paragraphs are dropped.
func (h *HierarchicalChunker) Paragraphs(pages []Page) []Paragraph {
	var paras []Paragraph
	for _, page := range pages {
		for _, block := range strings.Split(Clean(page.Text), "\n\n") {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			paras = append(paras, Paragraph{
				Text:   block,
				Tokens: h.tok.CountTokens(block),
				Page:   page.Number,
			})
		}
	}
	return paras
}

func (h *HierarchicalChunker) buildParent(n int, paras []Paragraph, tokens int) ParentChunk {
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = p.Text
	}
	return ParentChunk{Chunk: paperbase.Chunk{
		ID:        fmt.Sprintf("parent_%d", n),
		Level:     paperbase.LevelCoarse,
		PageStart: paras[0].Page,
		PageEnd:   paras[len(paras)-1].Page,
		TokenLen:  tokens,
		Text:      strings.Join(texts, "\n\n"),
	}}
}

// chunkChildren runs the fine chunker over one parent's text as a single
// synthetic page and rewrites the results to globally unique child ids.
// Children take the parent's page range wholesale: child page provenance
// is coarse-grained on purpose.
func (h *HierarchicalChunker) chunkChildren(parent *paperbase.Chunk, childN *int) []paperbase.Chunk {
	children := h.fine.Chunk([]Page{{Number: parent.PageStart, Text: parent.Text}})
	for i := range children {
		children[i].ID = fmt.Sprintf("child_%d", *childN)
		*childN++
		children[i].ParentID = parent.ID
		children[i].PageStart = parent.PageStart
		children[i].PageEnd = parent.PageEnd
	}
	return children
}
