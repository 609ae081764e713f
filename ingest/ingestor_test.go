package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	paperbase "github.com/dqviet/paperbase"
)

// fakeStore records what the ingestor stores and serves it back for the
// lexical rebuild snapshot.
type fakeStore struct {
	docs   map[string]paperbase.Document
	chunks map[string][]paperbase.Chunk

	storeErr error
	allErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]paperbase.Document),
		chunks: make(map[string][]paperbase.Chunk),
	}
}

func (f *fakeStore) Init(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) StoreDocument(_ context.Context, doc paperbase.Document, chunks []paperbase.Chunk) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.docs[doc.ID] = doc
	f.chunks[doc.ID] = chunks
	return nil
}

func (f *fakeStore) ListDocuments(context.Context, int) ([]paperbase.Document, error) {
	return nil, nil
}
func (f *fakeStore) DeleteDocument(context.Context, string) error { return nil }
func (f *fakeStore) SearchChunks(context.Context, []float32, int) ([]paperbase.RetrievalHit, error) {
	return nil, nil
}
func (f *fakeStore) GetChunksByIDs(context.Context, []string) ([]paperbase.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) AllChunks(context.Context) ([]paperbase.LexicalDoc, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	var out []paperbase.LexicalDoc
	for docID, chunks := range f.chunks {
		for _, c := range chunks {
			out = append(out, paperbase.LexicalDoc{
				ChunkID:    c.ID,
				DocumentID: docID,
				Level:      c.Level,
				Text:       c.Text,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrCreateSession(context.Context, string) (paperbase.Session, error) {
	return paperbase.Session{}, nil
}
func (f *fakeStore) StoreMessage(context.Context, paperbase.Message) error { return nil }
func (f *fakeStore) GetMessages(context.Context, string, int) ([]paperbase.Message, error) {
	return nil, nil
}

var _ paperbase.Store = (*fakeStore)(nil)

// countingEmbedding returns a unit vector per text and counts batch calls.
type countingEmbedding struct {
	batches [][]string
	err     error
}

func (e *countingEmbedding) Name() string    { return "counting" }
func (e *countingEmbedding) Dimensions() int { return 2 }

func (e *countingEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

const ingestSample = "The embargo began in March. Oil exports collapsed within weeks.\n\n" +
	"Two years later the markets recovered. Trade resumed at previous volumes."

func TestIngestor_IngestText(t *testing.T) {
	store := newFakeStore()
	emb := &countingEmbedding{}
	lexical := paperbase.NewLexicalIndex()
	ing := NewIngestor(store, emb, paperbase.NewWordTokenizer(), WithLexicalIndex(lexical))

	res, err := ing.IngestText(context.Background(), ingestSample, "notes.txt", "notes")
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID == "" {
		t.Fatal("empty document id")
	}
	if res.Coarse == 0 || res.Fine == 0 {
		t.Errorf("coarse=%d fine=%d, want both positive", res.Coarse, res.Fine)
	}
	if res.Document.Source != "notes.txt" || res.Document.Title != "notes" {
		t.Errorf("document = %+v", res.Document)
	}
	if res.Document.PageCount != 1 {
		t.Errorf("page count = %d, want 1", res.Document.PageCount)
	}

	chunks := store.chunks[res.DocumentID]
	if len(chunks) != res.Coarse+res.Fine {
		t.Fatalf("stored %d chunks, want %d", len(chunks), res.Coarse+res.Fine)
	}
	for _, c := range chunks {
		if c.DocumentID != res.DocumentID {
			t.Errorf("chunk %s document id = %q", c.ID, c.DocumentID)
		}
		switch c.Level {
		case paperbase.LevelFine:
			if c.Embedding == nil {
				t.Errorf("fine chunk %s has no embedding", c.ID)
			}
			if c.ParentID == "" {
				t.Errorf("fine chunk %s has no parent link", c.ID)
			}
		case paperbase.LevelCoarse:
			if c.Embedding != nil {
				t.Errorf("coarse chunk %s has an embedding", c.ID)
			}
		}
	}

	// Lexical index rebuilt from the stored corpus.
	if !lexical.Ready() {
		t.Error("lexical index not rebuilt after ingest")
	}
	if hits := lexical.Search("embargo", 5); len(hits) == 0 {
		t.Error("ingested text not findable by keyword")
	}
}

func TestIngestor_ChunkIDsScopedByDocument(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, &countingEmbedding{}, paperbase.NewWordTokenizer())

	res, err := ing.IngestText(context.Background(), ingestSample, "a.txt", "a")
	if err != nil {
		t.Fatal(err)
	}
	prefix := res.DocumentID + ":"
	for _, c := range store.chunks[res.DocumentID] {
		if len(c.ID) <= len(prefix) || c.ID[:len(prefix)] != prefix {
			t.Errorf("chunk id %q not scoped with %q", c.ID, prefix)
		}
		if c.ParentID != "" && c.ParentID[:len(prefix)] != prefix {
			t.Errorf("parent id %q not scoped with %q", c.ParentID, prefix)
		}
	}
}

func TestIngestor_SameContentSameID(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, &countingEmbedding{}, paperbase.NewWordTokenizer())

	a, err := ing.IngestText(context.Background(), ingestSample, "a.txt", "a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ing.IngestText(context.Background(), ingestSample, "b.txt", "b")
	if err != nil {
		t.Fatal(err)
	}
	if a.DocumentID != b.DocumentID {
		t.Errorf("identical bytes produced different ids: %s vs %s", a.DocumentID, b.DocumentID)
	}
	if len(store.docs) != 1 {
		t.Errorf("got %d stored documents, want 1 (supersede, not duplicate)", len(store.docs))
	}
}

func TestIngestor_EmbedFailureAbortsBeforeStore(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, &countingEmbedding{err: errors.New("embed down")}, paperbase.NewWordTokenizer())

	if _, err := ing.IngestText(context.Background(), ingestSample, "a.txt", "a"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(store.docs) != 0 {
		t.Error("document stored despite embedding failure")
	}
}

func TestIngestor_BatchSizeSplitsEmbedding(t *testing.T) {
	store := newFakeStore()
	emb := &countingEmbedding{}
	ing := NewIngestor(store, emb, paperbase.NewWordTokenizer(),
		WithBatchSize(1),
		WithChunkerOptions(WithFineChunkSize(10), WithOverlapSentences(0)))

	res, err := ing.IngestText(context.Background(), ingestSample, "a.txt", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb.batches) != res.Fine {
		t.Errorf("got %d embed batches, want %d with batch size 1", len(emb.batches), res.Fine)
	}
	for i, b := range emb.batches {
		if len(b) != 1 {
			t.Errorf("batch %d has %d texts, want 1", i, len(b))
		}
	}
}

func TestIngestor_LexicalRebuildFailureDoesNotFailIngest(t *testing.T) {
	store := newFakeStore()
	store.allErr = errors.New("snapshot down")
	ing := NewIngestor(store, &countingEmbedding{}, paperbase.NewWordTokenizer(),
		WithLexicalIndex(paperbase.NewLexicalIndex()))

	if _, err := ing.IngestText(context.Background(), ingestSample, "a.txt", "a"); err != nil {
		t.Fatalf("lexical rebuild failure must not fail the ingest: %v", err)
	}
}

func TestIngestor_IngestFileDetectsMarkdown(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, &countingEmbedding{}, paperbase.NewWordTokenizer())

	res, err := ing.IngestFile(context.Background(), []byte("# Title\n\nBody text here."), "doc.md")
	if err != nil {
		t.Fatal(err)
	}
	chunks := store.chunks[res.DocumentID]
	if len(chunks) == 0 {
		t.Fatal("no chunks stored")
	}
	for _, c := range chunks {
		if c.Level == paperbase.LevelCoarse {
			if !strings.Contains(c.Text, "Title") {
				t.Errorf("coarse chunk missing %q: %q", "Title", c.Text)
			}
			if strings.Contains(c.Text, "#") {
				t.Errorf("markdown markup leaked: %q", c.Text)
			}
		}
	}
}
