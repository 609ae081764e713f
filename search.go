package paperbase

import (
	"context"
	"fmt"
)

// HybridSearcher answers one query string with a merged vector + keyword
// candidate set. It owns no ranking decision beyond each backend's own
// ordering; the fusion pipeline reranks the merged pool.
type HybridSearcher struct {
	store     Store
	embedding EmbeddingProvider
	lexical   *LexicalIndex
}

// NewHybridSearcher creates a searcher over the given store and lexical
// index. lexical may be nil or empty, in which case only vector search runs.
func NewHybridSearcher(store Store, embedding EmbeddingProvider, lexical *LexicalIndex) *HybridSearcher {
	return &HybridSearcher{store: store, embedding: embedding, lexical: lexical}
}

// Search retrieves up to topK hits per backend for one query and merges them
// by chunk id. A chunk found by both backends is kept once with its method
// upgraded to hybrid; a chunk only the lexical index found is added with
// synthesized metadata and no vector score — the reranker scores it later.
// Insertion order is vector hits first, then keyword-only hits.
func (h *HybridSearcher) Search(ctx context.Context, query string, topK int) ([]RetrievalHit, error) {
	embs, err := h.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("embed query: no embedding returned")
	}

	vectorHits, err := h.store.SearchChunks(ctx, embs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]int, len(vectorHits))
	merged := make([]RetrievalHit, 0, len(vectorHits))
	for _, hit := range vectorHits {
		if _, dup := seen[hit.ChunkID]; dup {
			continue
		}
		hit.Method = MethodVector
		seen[hit.ChunkID] = len(merged)
		merged = append(merged, hit)
	}

	if h.lexical == nil || !h.lexical.Ready() {
		return merged, nil
	}

	for _, lh := range h.lexical.Search(query, topK) {
		if i, dup := seen[lh.Doc.ChunkID]; dup {
			merged[i].Method = MethodHybrid
			continue
		}
		seen[lh.Doc.ChunkID] = len(merged)
		merged = append(merged, RetrievalHit{
			ChunkID:    lh.Doc.ChunkID,
			DocumentID: lh.Doc.DocumentID,
			Level:      lh.Doc.Level,
			ParentID:   lh.Doc.ParentID,
			PageStart:  lh.Doc.PageStart,
			PageEnd:    lh.Doc.PageEnd,
			Text:       lh.Doc.Text,
			Source:     lh.Doc.Source,
			Method:     MethodKeyword,
		})
	}

	return merged, nil
}
