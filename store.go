package paperbase

import "context"

// Store abstracts persistence with vector search over chunks, plus chat
// history. Implementations: store/sqlite (local, brute-force cosine) and
// store/postgres (pgvector HNSW).
type Store interface {
	// --- Documents + chunks ---
	StoreDocument(ctx context.Context, doc Document, chunks []Chunk) error
	ListDocuments(ctx context.Context, limit int) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// SearchChunks runs vector similarity search and returns the topK nearest
	// chunks as hits tagged MethodVector.
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]RetrievalHit, error)
	GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error)

	// AllChunks returns a snapshot of every stored chunk, sufficient to
	// rebuild the lexical index after an ingestion.
	AllChunks(ctx context.Context) ([]LexicalDoc, error)

	// --- Chat history ---
	GetOrCreateSession(ctx context.Context, key string) (Session, error)
	StoreMessage(ctx context.Context, msg Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}
