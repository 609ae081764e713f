package paperbase

import "context"

// Provider abstracts the text-generation backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream streams tokens into ch, then returns the final response with
	// usage stats. The provider closes ch when the stream ends. Consumers stop
	// a stream by cancelling ctx; the provider must not corrupt shared state
	// when abandoned mid-stream.
	ChatStream(ctx context.Context, req ChatRequest, ch chan<- string) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai", "groq").
	Name() string
}

// EmbeddingProvider abstracts text embedding. Returned vectors are
// L2-normalized so inner product equals cosine similarity.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// RerankProvider abstracts a cross-encoder relevance model. Scores carry no
// fixed range; higher means more relevant. The bge-reranker family, which the
// default gate threshold is calibrated against, emits logits roughly centered
// at zero with negative values indicating irrelevance.
type RerankProvider interface {
	// Score returns one relevance score per passage, query-passage pairwise.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
	// Name returns the provider name.
	Name() string
}

// Tokenizer abstracts the token-counting model the chunkers budget against.
// Both directions must be deterministic for a fixed model identifier.
type Tokenizer interface {
	// Encode converts text to token ids.
	Encode(text string) []int
	// Decode converts token ids back to text.
	Decode(ids []int) string
	// CountTokens returns the token count without materializing ids.
	CountTokens(text string) int
}
