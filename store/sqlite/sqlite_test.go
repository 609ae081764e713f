package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	paperbase "github.com/dqviet/paperbase"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func testDoc(id string) paperbase.Document {
	return paperbase.Document{
		ID:        id,
		Title:     "Report",
		Source:    "report.pdf",
		SHA256:    "abc123",
		PageCount: 2,
		CreatedAt: paperbase.NowUnix(),
	}
}

func testChunk(id, docID string, emb []float32) paperbase.Chunk {
	return paperbase.Chunk{
		ID:            id,
		DocumentID:    docID,
		Level:         paperbase.LevelFine,
		PageStart:     1,
		PageEnd:       1,
		TokenLen:      4,
		SentenceCount: 1,
		Text:          "chunk " + id,
		Embedding:     emb,
	}
}

func TestInitIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestStoreDocumentSupersedes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := testDoc("d1")
	first := []paperbase.Chunk{
		testChunk("d1:sent_0", "d1", []float32{1, 0}),
		testChunk("d1:sent_1", "d1", []float32{0, 1}),
		testChunk("d1:sent_2", "d1", nil),
	}
	if err := s.StoreDocument(ctx, doc, first); err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}

	all, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d chunks, want 3", len(all))
	}

	// Re-ingesting the same document replaces its chunks entirely.
	second := []paperbase.Chunk{testChunk("d1:sent_0", "d1", []float32{1, 0})}
	if err := s.StoreDocument(ctx, doc, second); err != nil {
		t.Fatalf("re-store: %v", err)
	}
	all, err = s.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("after re-store got %d chunks, want 1", len(all))
	}
	if all[0].Source != "report.pdf" {
		t.Errorf("source = %q", all[0].Source)
	}

	docs, err := s.ListDocuments(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
}

func TestListDocumentsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		doc := testDoc(id)
		doc.CreatedAt = int64(1000 + i)
		if err := s.StoreDocument(ctx, doc, nil); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := s.ListDocuments(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "new" || docs[1].ID != "mid" {
		t.Errorf("order = %s, %s", docs[0].ID, docs[1].ID)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.StoreDocument(ctx, testDoc("d1"), []paperbase.Chunk{
		testChunk("d1:sent_0", "d1", []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	docs, err := s.ListDocuments(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("documents remain: %d", len(docs))
	}
	all, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("chunks remain: %d", len(all))
	}
}

func TestSearchChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	chunks := []paperbase.Chunk{
		testChunk("d1:sent_0", "d1", []float32{1, 0}),
		testChunk("d1:sent_1", "d1", []float32{0.9, 0.1}),
		testChunk("d1:sent_2", "d1", []float32{0, 1}),
		testChunk("d1:parent_0", "d1", nil), // no embedding, never a vector hit
	}
	if err := s.StoreDocument(ctx, testDoc("d1"), chunks); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchChunks(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ChunkID != "d1:sent_0" || hits[1].ChunkID != "d1:sent_1" {
		t.Errorf("order = %s, %s", hits[0].ChunkID, hits[1].ChunkID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %v, %v", hits[0].Score, hits[1].Score)
	}
	for _, h := range hits {
		if h.Method != paperbase.MethodVector {
			t.Errorf("hit %s method = %s", h.ChunkID, h.Method)
		}
		if h.Source != "report.pdf" {
			t.Errorf("hit %s source = %q", h.ChunkID, h.Source)
		}
	}
}

func TestGetChunksByIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	parent := paperbase.Chunk{
		ID: "d1:parent_0", DocumentID: "d1", Level: paperbase.LevelCoarse,
		PageStart: 1, PageEnd: 2, TokenLen: 8, SentenceCount: 2, Text: "parent text",
	}
	child := testChunk("d1:child_0", "d1", []float32{1, 0})
	child.ParentID = "d1:parent_0"
	if err := s.StoreDocument(ctx, testDoc("d1"), []paperbase.Chunk{parent, child}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetChunksByIDs(ctx, []string{"d1:parent_0", "d1:child_0", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	byID := map[string]paperbase.Chunk{}
	for _, c := range got {
		byID[c.ID] = c
	}
	if byID["d1:child_0"].ParentID != "d1:parent_0" {
		t.Errorf("child parent = %q", byID["d1:child_0"].ParentID)
	}
	if byID["d1:parent_0"].Level != paperbase.LevelCoarse {
		t.Errorf("parent level = %s", byID["d1:parent_0"].Level)
	}

	empty, err := s.GetChunksByIDs(ctx, nil)
	if err != nil || empty != nil {
		t.Errorf("empty ids: got %v, %v", empty, err)
	}
}

func TestGetOrCreateSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.GetOrCreateSession(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.Key != "cli" {
		t.Errorf("session = %+v", first)
	}

	again, err := s.GetOrCreateSession(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("same key returned different session: %s vs %s", again.ID, first.ID)
	}

	other, err := s.GetOrCreateSession(ctx, "web")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("distinct keys share a session")
	}
}

func TestMessagesChronologicalWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.GetOrCreateSession(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		msg := paperbase.Message{
			ID:        paperbase.NewID(),
			SessionID: sess.ID,
			Role:      "user",
			Content:   c,
			CreatedAt: int64(1000 + i),
		}
		if err := s.StoreMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.GetMessages(ctx, sess.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// Most recent two, oldest first.
	if msgs[0].Content != "third" || msgs[1].Content != "fourth" {
		t.Errorf("order = %q, %q", msgs[0].Content, msgs[1].Content)
	}

	none, err := s.GetMessages(ctx, "unknown-session", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("got %d messages for unknown session", len(none))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
