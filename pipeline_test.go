package paperbase

import (
	"context"
	"testing"
)

func pipelineFixture(reranker RerankProvider, expander Provider, opts ...PipelineOption) *Pipeline {
	store, lexical := hybridFixture()
	searcher := NewHybridSearcher(store, &stubEmbedding{vector: []float32{1, 0}}, lexical)
	return NewPipeline(searcher, reranker, expander, opts...)
}

func TestPipeline_RanksByRerankScore(t *testing.T) {
	reranker := &stubReranker{scores: map[string]float64{
		"the embargo began in march":        3.5,
		"exports recovered two years later": -1.2,
		"the embargo began in march. exports recovered two years later.": 5.0,
	}}
	p := pipelineFixture(reranker, nil)

	hits, err := p.Retrieve(context.Background(), "when did the embargo start?")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ChunkID != "d1:parent_0" {
		t.Errorf("top hit = %s, want d1:parent_0 (highest rerank score)", hits[0].ChunkID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].RerankScore > hits[i-1].RerankScore {
			t.Errorf("hits not sorted by rerank score at %d", i)
		}
	}
}

func TestPipeline_ReranksAgainstOriginalQuestion(t *testing.T) {
	expander := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "embargo start date\ntrade restrictions timeline"}},
	}}
	reranker := &stubReranker{fallback: 1}
	p := pipelineFixture(reranker, expander)

	question := "when did the embargo start?"
	if _, err := p.Retrieve(context.Background(), question); err != nil {
		t.Fatal(err)
	}
	if len(reranker.queries) != 1 {
		t.Fatalf("reranker called %d times, want 1", len(reranker.queries))
	}
	if reranker.queries[0] != question {
		t.Errorf("reranked against %q, want the original question", reranker.queries[0])
	}
}

func TestPipeline_ExpansionFailureDegradesToOriginal(t *testing.T) {
	expander := &stubProvider{results: []stubResult{
		{err: &ErrHTTP{Status: 503}},
	}}
	reranker := &stubReranker{fallback: 1}
	p := pipelineFixture(reranker, expander)

	hits, err := p.Retrieve(context.Background(), "when did the embargo start?")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("expansion failure must still return ranked hits from the original question")
	}
}

func TestPipeline_DedupAcrossVariants(t *testing.T) {
	// Both variants hit the same chunks; each chunk id must survive once.
	expander := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "embargo start\nembargo beginning"}},
	}}
	reranker := &stubReranker{fallback: 1}
	p := pipelineFixture(reranker, expander, WithRerankTopN(100))

	hits, err := p.Retrieve(context.Background(), "embargo")
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]int)
	for _, h := range hits {
		seen[h.ChunkID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("chunk %s appears %d times after dedup", id, n)
		}
	}
}

func TestPipeline_EmptyCandidatesSignalFallback(t *testing.T) {
	store := newMemStore()
	lexical := NewLexicalIndex()
	searcher := NewHybridSearcher(store, &stubEmbedding{vector: []float32{1, 0}}, lexical)
	p := NewPipeline(searcher, &stubReranker{}, nil)

	hits, err := p.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits from an empty store, want 0", len(hits))
	}
	if p.Gate(hits) {
		t.Error("gate must reject empty candidates")
	}
}

func TestPipeline_Gate(t *testing.T) {
	p := pipelineFixture(&stubReranker{}, nil, WithGateThreshold(-2.0))

	tests := []struct {
		name string
		hits []RetrievalHit
		want bool
	}{
		{name: "empty", hits: nil, want: false},
		{name: "top score above threshold", hits: []RetrievalHit{{RerankScore: 1.5}}, want: true},
		{name: "top score at threshold", hits: []RetrievalHit{{RerankScore: -2.0}}, want: true},
		{name: "top score below threshold", hits: []RetrievalHit{{RerankScore: -2.1}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Gate(tt.hits); got != tt.want {
				t.Errorf("Gate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipeline_RerankTopNTrims(t *testing.T) {
	reranker := &stubReranker{fallback: 1}
	p := pipelineFixture(reranker, nil, WithRerankTopN(1))

	hits, err := p.Retrieve(context.Background(), "embargo")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) > 1 {
		t.Errorf("got %d hits, want at most 1", len(hits))
	}
}

func TestPipeline_RerankFailurePropagates(t *testing.T) {
	reranker := &stubReranker{err: &ErrHTTP{Status: 500}}
	p := pipelineFixture(reranker, nil)

	if _, err := p.Retrieve(context.Background(), "embargo"); err == nil {
		t.Fatal("expected error when rerank fails")
	}
}
