// Package paperbase is a document question-answering core for Go.
//
// It provides modular, interface-driven building blocks: a hierarchical
// document chunking pipeline, in-memory BM25 lexical search, hybrid
// vector+keyword retrieval with query expansion and cross-encoder
// reranking, and a routed answer flow with chat history.
//
// # Quick Start
//
// Assemble the retrieval pipeline and answer questions:
//
//	llm := openaicompat.New(apiKey, model, openaicompat.WithBaseURL(baseURL))
//	embedding := openaicompat.NewEmbedding(apiKey, embedModel, dims)
//	reranker := tei.New(rerankURL)
//	store := sqlite.New("paperbase.db")
//
//	lexical := paperbase.NewLexicalIndex()
//	searcher := paperbase.NewHybridSearcher(store, embedding, lexical)
//	pipeline := paperbase.NewPipeline(searcher, reranker, llm)
//	answerer := paperbase.NewAnswerer(paperbase.NewRouter(llm), pipeline, llm, store)
//
//	ch := make(chan string)
//	go func() {
//		for tok := range ch {
//			fmt.Print(tok)
//		}
//	}()
//	result, err := answerer.Answer(ctx, "cli", "What does chapter 3 cover?", ch)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Provider] — LLM backend (chat, streaming)
//   - [EmbeddingProvider] — text-to-vector embedding
//   - [RerankProvider] — cross-encoder relevance scoring
//   - [Store] — persistence with vector search and chat sessions
//   - [Tokenizer] — token counting for chunk budgets
//
// # Included Implementations
//
// Providers: provider/openaicompat (OpenAI-compatible chat and embeddings),
// provider/tei (text-embeddings-inference reranking).
// Storage: store/sqlite (local), store/postgres (pgvector).
// Ingestion: the ingest package extracts, cleans, segments, and chunks
// PDF, Markdown, HTML, and plain-text documents.
//
// See the cmd/paperbase directory for a complete reference application.
package paperbase
