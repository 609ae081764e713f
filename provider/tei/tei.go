// Package tei implements paperbase.RerankProvider against a
// text-embeddings-inference server hosting a cross-encoder model
// (e.g. bge-reranker). Scores are raw model outputs: roughly centered
// at zero, negative meaning irrelevant.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	paperbase "github.com/dqviet/paperbase"
)

// Option configures a Reranker.
type Option func(*Reranker)

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reranker) { r.client = c }
}

// WithAPIKey sets a bearer token for servers behind an auth proxy.
func WithAPIKey(key string) Option {
	return func(r *Reranker) { r.apiKey = key }
}

// Reranker implements paperbase.RerankProvider via the TEI /rerank
// endpoint.
type Reranker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a reranker client. baseURL is the server root
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Reranker {
	r := &Reranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name returns "tei".
func (r *Reranker) Name() string { return "tei" }

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per passage, in passage order.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Texts: passages, RawScores: true})
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: "tei", Message: fmt.Sprintf("marshal rerank request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: "tei", Message: fmt.Sprintf("create rerank request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: "tei", Message: fmt.Sprintf("rerank request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &paperbase.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &paperbase.ErrLLM{Provider: "tei", Message: fmt.Sprintf("decode rerank response: %v", err)}
	}

	// TEI returns results sorted by score; Index maps back to input order.
	scores := make([]float64, len(passages))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, &paperbase.ErrLLM{Provider: "tei", Message: fmt.Sprintf("rerank index %d out of range", res.Index)}
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}

// Compile-time interface check.
var _ paperbase.RerankProvider = (*Reranker)(nil)
