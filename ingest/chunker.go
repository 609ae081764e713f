package ingest

import (
	"fmt"
	"strings"

	paperbase "github.com/dqviet/paperbase"
)

// ChunkerOption configures a chunker implementation.
type ChunkerOption func(*chunkerConfig)

type chunkerConfig struct {
	fineChunkSize    int
	overlapSentences int
	coarseTarget     int
	coarseOverlap    int
}

func defaultChunkerConfig() chunkerConfig {
	return chunkerConfig{
		fineChunkSize:    256,
		overlapSentences: 2,
		coarseTarget:     1024,
		coarseOverlap:    128,
	}
}

// WithFineChunkSize sets the token budget for fine chunks.
func WithFineChunkSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.fineChunkSize = n }
}

// WithOverlapSentences sets how many trailing sentences of a flushed fine
// chunk seed the next one. Zero disables overlap.
func WithOverlapSentences(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.overlapSentences = n }
}

// WithCoarseTarget sets the token budget for coarse (parent) chunks.
func WithCoarseTarget(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.coarseTarget = n }
}

// WithCoarseOverlap sets the minimum token overlap between consecutive
// coarse chunks.
func WithCoarseOverlap(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.coarseOverlap = n }
}

// SentenceChunker packs segmented sentences into token-bounded fine
// chunks with a sentence-count overlap between consecutive chunks.
// Sentences are never split: one sentence over the token budget still
// becomes (part of) a chunk whole.
type SentenceChunker struct {
	tok       paperbase.Tokenizer
	chunkSize int
	overlap   int
}

// NewSentenceChunker creates a sentence-window chunker.
func NewSentenceChunker(tok paperbase.Tokenizer, opts ...ChunkerOption) *SentenceChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &SentenceChunker{tok: tok, chunkSize: cfg.fineChunkSize, overlap: cfg.overlapSentences}
}

// Chunk segments pages into sentences and packs them into fine chunks.
// Chunk ids are sequential per call ("sent_0", "sent_1", ...) and not
// globally unique; callers embedding this inside a larger run rewrite
// them (see HierarchicalChunker).
func (c *SentenceChunker) Chunk(pages []Page) []paperbase.Chunk {
	sentences := Segmenter{}.Segment(pages)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []paperbase.Chunk
	var buf []Sentence
	bufTokens := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(len(chunks), buf, bufTokens))

		// Seed the next chunk with the trailing overlap. A buffer shorter
		// than the overlap is kept whole.
		if c.overlap <= 0 {
			buf = nil
			bufTokens = 0
			return
		}
		keep := buf
		if len(keep) > c.overlap {
			keep = keep[len(keep)-c.overlap:]
		}
		buf = append([]Sentence(nil), keep...)
		bufTokens = 0
		for _, s := range buf {
			bufTokens += c.tok.CountTokens(s.Text)
		}
	}

	for _, s := range sentences {
		n := c.tok.CountTokens(s.Text)
		if len(buf) > 0 && bufTokens+n > c.chunkSize {
			flush()
		}
		buf = append(buf, s)
		bufTokens += n
	}
	if len(buf) > 0 {
		chunks = append(chunks, c.buildChunk(len(chunks), buf, bufTokens))
	}
	return chunks
}

func (c *SentenceChunker) buildChunk(n int, buf []Sentence, tokens int) paperbase.Chunk {
	texts := make([]string, len(buf))
	pageStart, pageEnd := buf[0].Page, buf[0].Page
	for i, s := range buf {
		texts[i] = s.Text
		if s.Page < pageStart {
			pageStart = s.Page
		}
		if s.Page > pageEnd {
			pageEnd = s.Page
		}
	}
	return paperbase.Chunk{
		ID:            fmt.Sprintf("sent_%d", n),
		Level:         paperbase.LevelFine,
		PageStart:     pageStart,
		PageEnd:       pageEnd,
		TokenLen:      tokens,
		SentenceCount: len(buf),
		Text:          strings.Join(texts, " "),
	}
}
