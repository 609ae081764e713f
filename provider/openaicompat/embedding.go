package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	paperbase "github.com/dqviet/paperbase"
)

// Embedding implements paperbase.EmbeddingProvider against the OpenAI
// embeddings endpoint. One request embeds a whole batch.
type Embedding struct {
	apiKey string
	model  string
	dims   int
	opts   options
}

// NewEmbedding creates an OpenAI-compatible embedding provider. dims is
// the vector dimensionality the model produces (or should truncate to,
// for models that support it).
func NewEmbedding(apiKey, model string, dims int, opts ...Option) *Embedding {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Embedding{apiKey: apiKey, model: model, dims: dims, opts: o}
}

// Name returns the provider name.
func (e *Embedding) Name() string { return e.opts.name }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed embeds the batch of texts and returns one vector per input, in
// input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(EmbeddingRequest{Model: e.model, Input: texts, Dimensions: e.dims})
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: e.opts.name, Message: fmt.Sprintf("marshal embed request: %v", err)}
	}

	url := e.opts.baseURL + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: e.opts.name, Message: fmt.Sprintf("create embed request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.opts.client.Do(httpReq)
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: e.opts.name, Message: fmt.Sprintf("embed request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpErr(resp)
	}

	var parsed EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &paperbase.ErrLLM{Provider: e.opts.name, Message: fmt.Sprintf("decode embed response: %v", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &paperbase.ErrLLM{Provider: e.opts.name,
			Message: fmt.Sprintf("embed count mismatch: sent %d, got %d", len(texts), len(parsed.Data))}
	}

	// The API may return data out of order; Index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &paperbase.ErrLLM{Provider: e.opts.name, Message: fmt.Sprintf("embed index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Compile-time interface check.
var _ paperbase.EmbeddingProvider = (*Embedding)(nil)
