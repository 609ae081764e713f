package paperbase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// expandSystemPrompt asks the generation backend for paraphrased search
// queries. One query per line, nothing else.
const expandSystemPrompt = "You are a search assistant. Rewrite the user's question into 3 different " +
	"search queries that would help find relevant passages in a document collection. " +
	"Return only the queries, one per line. No numbering, no explanations."

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	perQueryTopK  int
	rerankTopN    int
	maxVariants   int
	gateThreshold float64
	logger        *slog.Logger
}

// WithPerQueryTopK sets how many hits each backend returns per query variant.
// Default is 5.
func WithPerQueryTopK(k int) PipelineOption {
	return func(c *pipelineConfig) { c.perQueryTopK = k }
}

// WithRerankTopN sets how many candidates survive the rerank stage.
// Default is 3.
func WithRerankTopN(n int) PipelineOption {
	return func(c *pipelineConfig) { c.rerankTopN = n }
}

// WithMaxVariants caps how many paraphrased variants query expansion may add
// on top of the original question. Default is 3.
func WithMaxVariants(n int) PipelineOption {
	return func(c *pipelineConfig) { c.maxVariants = n }
}

// WithGateThreshold sets the minimum top rerank score below which retrieved
// evidence is discarded. The default of -2.0 is calibrated to cross-encoders
// whose scores center near zero with negative values meaning irrelevant;
// recalibrate when switching reranker models.
func WithGateThreshold(t float64) PipelineOption {
	return func(c *pipelineConfig) { c.gateThreshold = t }
}

// WithPipelineLogger sets a structured logger. If not set, nothing is logged.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(c *pipelineConfig) { c.logger = l }
}

// Pipeline is the retrieval orchestrator. One Retrieve call walks
// EXPAND → SEARCH_ALL → DEDUP → RERANK; Gate is the caller's final
// quality check before generation.
type Pipeline struct {
	searcher *HybridSearcher
	reranker RerankProvider
	expander Provider
	cfg      pipelineConfig
}

// NewPipeline creates a Pipeline. expander may be nil to disable query
// expansion entirely; reranker is required.
func NewPipeline(searcher *HybridSearcher, reranker RerankProvider, expander Provider, opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{
		perQueryTopK:  5,
		rerankTopN:    3,
		maxVariants:   3,
		gateThreshold: -2.0,
		logger:        slog.New(discardLogHandler{}),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Pipeline{searcher: searcher, reranker: reranker, expander: expander, cfg: cfg}
}

// GateThreshold returns the configured quality-gate threshold.
func (p *Pipeline) GateThreshold() float64 { return p.cfg.gateThreshold }

// Retrieve runs the full fusion pipeline for one question and returns up to
// rerankTopN candidates sorted by rerank score descending. Final ordering
// depends only on each candidate's rerank score against the original
// question; which variant or backend surfaced a candidate decides whether it
// is considered, never where it ranks.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]RetrievalHit, error) {
	// EXPAND: the original question always searches first, so its hits win
	// the first-seen metadata race in DEDUP.
	queries := p.expandQueries(ctx, question)

	// SEARCH_ALL + DEDUP: variants run in order, first-seen chunk id wins.
	seen := make(map[string]bool)
	var candidates []RetrievalHit
	for _, q := range queries {
		hits, err := p.searcher.Search(ctx, q, p.cfg.perQueryTopK)
		if err != nil {
			p.cfg.logger.Warn("variant search failed", "query", q, "error", err)
			continue
		}
		for _, h := range hits {
			if seen[h.ChunkID] {
				continue
			}
			seen[h.ChunkID] = true
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// RERANK: always against the original question, never a variant.
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Text
	}
	scores, err := p.reranker.Score(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if i < len(scores) {
			candidates[i].RerankScore = scores[i]
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].RerankScore > candidates[b].RerankScore
	})
	if len(candidates) > p.cfg.rerankTopN {
		candidates = candidates[:p.cfg.rerankTopN]
	}

	p.cfg.logger.Debug("retrieve done",
		"variants", len(queries), "candidates", len(seen), "returned", len(candidates))
	return candidates, nil
}

// Gate reports whether the candidates are good enough to answer from. Empty
// candidates, or a best rerank score under the threshold, means the caller
// must discard them and answer without evidence.
func (p *Pipeline) Gate(hits []RetrievalHit) bool {
	if len(hits) == 0 {
		return false
	}
	return hits[0].RerankScore >= p.cfg.gateThreshold
}

// expandQueries returns the original question followed by up to maxVariants
// LLM paraphrases. Expansion failure of any kind degrades to the original
// question alone — this step never aborts the request.
func (p *Pipeline) expandQueries(ctx context.Context, question string) []string {
	queries := []string{question}
	if p.expander == nil || p.cfg.maxVariants <= 0 {
		return queries
	}

	resp, err := p.expander.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(expandSystemPrompt),
		UserMessage(question),
	}})
	if err != nil {
		p.cfg.logger.Warn("query expansion failed", "error", err)
		return queries
	}

	added := 0
	for _, line := range strings.Split(resp.Content, "\n") {
		v := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789. "))
		if v == "" || v == question {
			continue
		}
		queries = append(queries, v)
		added++
		if added >= p.cfg.maxVariants {
			break
		}
	}
	return queries
}
