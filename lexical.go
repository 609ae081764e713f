package paperbase

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// LexicalDoc is one entry of the lexical corpus snapshot: the text plus the
// metadata a keyword-only hit needs to be usable downstream.
type LexicalDoc struct {
	ChunkID    string
	DocumentID string
	Level      ChunkLevel
	ParentID   string
	PageStart  int
	PageEnd    int
	Source     string
	Text       string
}

// LexicalHit is a scored corpus entry from a keyword search.
type LexicalHit struct {
	Doc   LexicalDoc
	Score float64
}

// BM25 Okapi parameters, matching the rank_bm25 defaults the scores were
// tuned against.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// bm25Index is an immutable term-frequency index over one corpus snapshot.
// It is built once and then only read.
type bm25Index struct {
	docs    []LexicalDoc
	freqs   []map[string]int
	lens    []int
	avgLen  float64
	idf     map[string]float64
}

// LexicalIndex is the one piece of shared mutable state in the engine. The
// active index lives behind an atomic pointer: Rebuild constructs a complete
// replacement off to the side and installs it in a single swap, so in-flight
// searches always see either the old or the new index, never a partial one.
type LexicalIndex struct {
	idx atomic.Pointer[bm25Index]
}

// NewLexicalIndex returns an empty index. Search on an empty index returns nil.
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{}
}

// Ready reports whether a corpus has been installed.
func (l *LexicalIndex) Ready() bool {
	idx := l.idx.Load()
	return idx != nil && len(idx.docs) > 0
}

// Size returns the number of indexed chunks.
func (l *LexicalIndex) Size() int {
	idx := l.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.docs)
}

// Rebuild replaces the active index with one built from docs. An empty
// snapshot installs an empty index, disabling keyword search until the next
// ingestion.
func (l *LexicalIndex) Rebuild(docs []LexicalDoc) {
	l.idx.Store(buildBM25(docs))
}

// Search scores the query's lowercased whitespace terms against the corpus
// and returns the topK entries with positive scores, best first.
func (l *LexicalIndex) Search(query string, topK int) []LexicalHit {
	idx := l.idx.Load()
	if idx == nil || len(idx.docs) == 0 || topK <= 0 {
		return nil
	}
	terms := lexicalTerms(query)
	if len(terms) == 0 {
		return nil
	}

	hits := make([]LexicalHit, 0, len(idx.docs))
	for i := range idx.docs {
		score := idx.score(terms, i)
		if score > 0 {
			hits = append(hits, LexicalHit{Doc: idx.docs[i], Score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// score computes Okapi BM25 for one document.
func (idx *bm25Index) score(terms []string, i int) float64 {
	freq := idx.freqs[i]
	norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.lens[i])/idx.avgLen)
	var s float64
	for _, t := range terms {
		f := float64(freq[t])
		if f == 0 {
			continue
		}
		s += idx.idf[t] * f * (bm25K1 + 1) / (f + norm)
	}
	return s
}

func buildBM25(docs []LexicalDoc) *bm25Index {
	idx := &bm25Index{
		docs:  docs,
		freqs: make([]map[string]int, len(docs)),
		lens:  make([]int, len(docs)),
		idf:   make(map[string]float64),
	}
	if len(docs) == 0 {
		idx.avgLen = 1
		return idx
	}

	df := make(map[string]int)
	total := 0
	for i, d := range docs {
		terms := lexicalTerms(d.Text)
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		for t := range freq {
			df[t]++
		}
		idx.freqs[i] = freq
		idx.lens[i] = len(terms)
		total += len(terms)
	}
	idx.avgLen = float64(total) / float64(len(docs))
	if idx.avgLen == 0 {
		idx.avgLen = 1
	}

	// Okapi idf can go negative for terms present in most documents; floor
	// those at epsilon times the average idf, as rank_bm25 does.
	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for t, d := range df {
		v := math.Log((n - float64(d) + 0.5) / (float64(d) + 0.5))
		idx.idf[t] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, t)
		}
	}
	avgIDF := idfSum / float64(len(df))
	floor := bm25Epsilon * avgIDF
	for _, t := range negative {
		idx.idf[t] = floor
	}
	return idx
}

// lexicalTerms lowercases and whitespace-splits text into scoring terms.
func lexicalTerms(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
