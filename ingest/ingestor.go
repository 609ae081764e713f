package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	paperbase "github.com/dqviet/paperbase"
)

// IngestResult holds the outcome of an ingest operation.
type IngestResult struct {
	DocumentID string
	Document   paperbase.Document
	Coarse     int
	Fine       int
}

// Ingestor provides end-to-end ingestion: extract pages, chunk both
// levels, embed fine chunks, store, and rebuild the lexical index.
//
// Document ids are content-addressed, so re-ingesting identical bytes
// replaces the previous chunks instead of accumulating duplicates.
type Ingestor struct {
	store      paperbase.Store
	embedding  paperbase.EmbeddingProvider
	tok        paperbase.Tokenizer
	chunker    *HierarchicalChunker
	lexical    *paperbase.LexicalIndex
	extractors map[ContentType]Extractor
	batchSize  int
	logger     *slog.Logger
}

// NewIngestor creates an Ingestor with sensible defaults.
func NewIngestor(store paperbase.Store, emb paperbase.EmbeddingProvider, tok paperbase.Tokenizer, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:     store,
		embedding: emb,
		tok:       tok,
		chunker:   NewHierarchicalChunker(tok),
		extractors: map[ContentType]Extractor{
			TypePlainText: PlainTextExtractor{},
			TypeHTML:      NewHTMLExtractor(""),
			TypeMarkdown:  NewMarkdownExtractor(),
			TypePDF:       NewPDFExtractor(),
		},
		batchSize: 64,
		logger:    paperbase.NopLogger(),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestFile ingests file content, detecting the content type from the
// filename extension.
func (ing *Ingestor) IngestFile(ctx context.Context, content []byte, filename string) (IngestResult, error) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	ct := ContentTypeFromExtension(ext)

	extractor, ok := ing.extractors[ct]
	if !ok {
		extractor = PlainTextExtractor{}
	}

	pages, err := extractor.Extract(content)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", ct, err)
	}

	return ing.ingestPages(ctx, content, pages, filename, filepath.Base(filename))
}

// IngestReader reads all content from r and ingests it, detecting content
// type from filename.
func (ing *Ingestor) IngestReader(ctx context.Context, r io.Reader, filename string) (IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read: %w", err)
	}
	return ing.IngestFile(ctx, data, filename)
}

// IngestText ingests plain text content as a single page.
func (ing *Ingestor) IngestText(ctx context.Context, text, source, title string) (IngestResult, error) {
	return ing.ingestPages(ctx, []byte(text), []Page{{Number: 1, Text: text}}, source, title)
}

func (ing *Ingestor) ingestPages(ctx context.Context, raw []byte, pages []Page, source, title string) (IngestResult, error) {
	docID, sum := paperbase.ContentID(raw)
	doc := paperbase.Document{
		ID:        docID,
		Title:     title,
		Source:    source,
		SHA256:    sum,
		PageCount: len(pages),
		CreatedAt: paperbase.NowUnix(),
	}

	chunks := ing.chunker.Chunk(pages, ReturnBoth)
	coarse, fine := scopeChunkIDs(docID, chunks)

	if err := ing.batchEmbed(ctx, chunks); err != nil {
		return IngestResult{}, err
	}

	if err := ing.store.StoreDocument(ctx, doc, chunks); err != nil {
		return IngestResult{}, fmt.Errorf("store: %w", err)
	}

	if err := ing.rebuildLexical(ctx); err != nil {
		// The document is stored and vector-searchable; keyword search
		// lags until the next rebuild.
		ing.logger.Warn("lexical index rebuild failed", "document", docID, "error", err)
	}

	ing.logger.Info("document ingested",
		"document", docID, "source", source, "pages", len(pages),
		"coarse", coarse, "fine", fine)

	return IngestResult{DocumentID: docID, Document: doc, Coarse: coarse, Fine: fine}, nil
}

// scopeChunkIDs qualifies chunk and parent ids with the document id so
// chunks from different documents never collide in shared storage.
func scopeChunkIDs(docID string, chunks []paperbase.Chunk) (coarse, fine int) {
	for i := range chunks {
		chunks[i].ID = docID + ":" + chunks[i].ID
		chunks[i].DocumentID = docID
		if chunks[i].ParentID != "" {
			chunks[i].ParentID = docID + ":" + chunks[i].ParentID
		}
		if chunks[i].Level == paperbase.LevelCoarse {
			coarse++
		} else {
			fine++
		}
	}
	return coarse, fine
}

// batchEmbed embeds fine chunks in batches. Coarse chunks are stored
// without embeddings; they serve keyword search and context display.
func (ing *Ingestor) batchEmbed(ctx context.Context, chunks []paperbase.Chunk) error {
	var idx []int
	for i, c := range chunks {
		if c.Level == paperbase.LevelFine {
			idx = append(idx, i)
		}
	}

	for i := 0; i < len(idx); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(idx) {
			end = len(idx)
		}
		batch := idx[i:end]
		texts := make([]string, len(batch))
		for j, k := range batch {
			texts[j] = chunks[k].Text
		}
		embeddings, err := ing.embedding.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		for j, k := range batch {
			if j < len(embeddings) {
				chunks[k].Embedding = embeddings[j]
			}
		}
	}
	return nil
}

// rebuildLexical snapshots the full chunk corpus and swaps in a freshly
// built index. In-flight searches keep the old index until the swap.
func (ing *Ingestor) rebuildLexical(ctx context.Context) error {
	if ing.lexical == nil {
		return nil
	}
	docs, err := ing.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("snapshot chunks: %w", err)
	}
	ing.lexical.Rebuild(docs)
	return nil
}
