package ingest

import (
	"log/slog"

	paperbase "github.com/dqviet/paperbase"
)

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunkerOptions replaces the hierarchical chunker's parameters.
func WithChunkerOptions(opts ...ChunkerOption) Option {
	return func(ing *Ingestor) {
		ing.chunker = NewHierarchicalChunker(ing.tok, opts...)
	}
}

// WithBatchSize sets the number of chunks per Embed() call (default 64).
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// WithExtractor registers an Extractor for a given ContentType.
func WithExtractor(ct ContentType, e Extractor) Option {
	return func(ing *Ingestor) { ing.extractors[ct] = e }
}

// WithLexicalIndex attaches a lexical index that is rebuilt from the full
// chunk corpus after each successful ingest.
func WithLexicalIndex(idx *paperbase.LexicalIndex) Option {
	return func(ing *Ingestor) { ing.lexical = idx }
}

// WithLogger sets a structured logger. If not set, nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}
