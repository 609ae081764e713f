package paperbase

import (
	"context"
	"strings"
)

// Route is the router's verdict on whether a question needs retrieval.
type Route string

const (
	// RouteRetrieval sends the question through the fusion pipeline.
	RouteRetrieval Route = "RAG"
	// RouteGeneral answers from the model's own knowledge.
	RouteGeneral Route = "GENERAL"
)

// routerSystemPrompt classifies questions, biased heavily toward retrieval:
// missing a document lookup is worse than a wasted search.
const routerSystemPrompt = `You are the gatekeeper for a document question-answering system. Your ONLY job is to classify the user input as 'RAG' or 'GENERAL'.

Your default assumption MUST be 'RAG'. Choose 'GENERAL' only for clearly non-factual input.

1. RAG (document lookup) — choose this for the vast majority of queries:
   - ANY question about facts, news, history, politics, law, or definitions.
   - ANY question about specific entities (people, places, organizations, events), even famous ones.
   - ANY who / what / where / when / why / how question.
   - ANY mention of documents, files, summaries, or analysis.
   - Ambiguous or context-dependent questions ("Is that true?", "Explain this").

2. GENERAL (chit-chat / tasks) — choose this ONLY for:
   - Pure greetings or farewells ("Hello", "Hi", "Good morning", "Thanks", "Bye").
   - Requests to write code.
   - Creative writing not grounded in facts (poems, jokes, stories).
   - Generic translation requests with no document context.

Examples you must not get wrong:
"The war in Thailand?" -> RAG
"Who is Nicolas Maduro?" -> RAG
"What is 1 + 1?" -> GENERAL
"Write Java code" -> GENERAL
"Summarize it for me" -> RAG
"Does he have a wife?" -> RAG

Answer with exactly one word: 'RAG' or 'GENERAL'.`

// Router decides whether a question needs the retrieval pipeline. Any
// backend failure or unparseable reply defaults to retrieval — silently
// skipping a lookup is the worse failure mode.
type Router struct {
	provider Provider
}

// NewRouter creates a Router over the given classification backend.
func NewRouter(provider Provider) *Router {
	return &Router{provider: provider}
}

// Classify routes one question. Never returns an error; the fail-safe
// answer is RouteRetrieval.
func (r *Router) Classify(ctx context.Context, question string) Route {
	resp, err := r.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(routerSystemPrompt),
		UserMessage(question),
	}})
	if err != nil {
		return RouteRetrieval
	}
	return ParseRoute(resp.Content)
}

// ParseRoute maps a model reply to a Route by case-insensitive containment,
// "RAG" taking precedence when both labels appear. An empty or unparseable
// reply fails safe to retrieval.
func ParseRoute(reply string) Route {
	upper := strings.ToUpper(reply)
	if strings.Contains(upper, "RAG") {
		return RouteRetrieval
	}
	if strings.Contains(upper, "GENERAL") {
		return RouteGeneral
	}
	return RouteRetrieval
}
