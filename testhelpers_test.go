package paperbase

import (
	"context"
)

// stubProvider is a test Provider that returns pre-configured results in
// order. Chat and ChatStream share the same result queue via one counter.
type stubProvider struct {
	calls    int
	results  []stubResult
	requests []ChatRequest // every request seen, in order
}

type stubResult struct {
	resp   ChatResponse
	tokens []string // tokens written to ch in ChatStream
	err    error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) next(req ChatRequest) stubResult {
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return stubResult{}
}

func (s *stubProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	r := s.next(req)
	return r.resp, r.err
}

func (s *stubProvider) ChatStream(_ context.Context, req ChatRequest, ch chan<- string) (ChatResponse, error) {
	defer close(ch)
	r := s.next(req)
	for _, tok := range r.tokens {
		ch <- tok
	}
	return r.resp, r.err
}

var _ Provider = (*stubProvider)(nil)

// stubEmbedding returns a fixed vector per text, or a queued error.
type stubEmbedding struct {
	calls  int
	vector []float32
	err    error
}

func (s *stubEmbedding) Name() string    { return "stub-embed" }
func (s *stubEmbedding) Dimensions() int { return len(s.vector) }

func (s *stubEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

var _ EmbeddingProvider = (*stubEmbedding)(nil)

// stubReranker scores passages by a lookup table keyed on the passage text;
// unknown passages score fallback.
type stubReranker struct {
	scores   map[string]float64
	fallback float64
	err      error
	queries  []string
}

func (s *stubReranker) Name() string { return "stub-rerank" }

func (s *stubReranker) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(passages))
	for i, p := range passages {
		if v, ok := s.scores[p]; ok {
			out[i] = v
		} else {
			out[i] = s.fallback
		}
	}
	return out, nil
}

var _ RerankProvider = (*stubReranker)(nil)

// memStore is an in-memory Store for tests. Vector search returns hits in
// insertion order; similarity math is not simulated.
type memStore struct {
	docs     map[string]Document
	chunks   []Chunk
	sessions map[string]Session
	messages []Message

	searchErr error
}

func newMemStore() *memStore {
	return &memStore{
		docs:     make(map[string]Document),
		sessions: make(map[string]Session),
	}
}

func (m *memStore) Init(_ context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) StoreDocument(_ context.Context, doc Document, chunks []Chunk) error {
	m.docs[doc.ID] = doc
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != doc.ID {
			kept = append(kept, c)
		}
	}
	m.chunks = append(kept, chunks...)
	return nil
}

func (m *memStore) ListDocuments(_ context.Context, limit int) ([]Document, error) {
	var out []Document
	for _, d := range m.docs {
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) error {
	delete(m.docs, id)
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *memStore) SearchChunks(_ context.Context, _ []float32, topK int) ([]RetrievalHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []RetrievalHit
	for _, c := range m.chunks {
		if c.Embedding == nil {
			continue
		}
		out = append(out, RetrievalHit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Level:      c.Level,
			ParentID:   c.ParentID,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Text:       c.Text,
			Source:     m.docs[c.DocumentID].Source,
			Method:     MethodVector,
			Score:      1,
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func (m *memStore) GetChunksByIDs(_ context.Context, ids []string) ([]Chunk, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Chunk
	for _, c := range m.chunks {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) AllChunks(_ context.Context) ([]LexicalDoc, error) {
	var out []LexicalDoc
	for _, c := range m.chunks {
		out = append(out, LexicalDoc{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Level:      c.Level,
			ParentID:   c.ParentID,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Source:     m.docs[c.DocumentID].Source,
			Text:       c.Text,
		})
	}
	return out, nil
}

func (m *memStore) GetOrCreateSession(_ context.Context, key string) (Session, error) {
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	s := Session{ID: NewID(), Key: key, CreatedAt: NowUnix()}
	m.sessions[key] = s
	return s, nil
}

func (m *memStore) StoreMessage(_ context.Context, msg Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) GetMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	var out []Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var _ Store = (*memStore)(nil)
