package paperbase

// --- Domain types (database records) ---

// Document is one ingested source file. Re-ingesting the same bytes produces
// a new Document with a fresh chunk set; old chunks are superseded, never merged.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SHA256    string `json:"sha256"`
	PageCount int    `json:"page_count"`
	CreatedAt int64  `json:"created_at"`
}

// ChunkLevel distinguishes the two tiers of the hierarchical chunker.
type ChunkLevel string

const (
	// LevelCoarse marks a parent chunk: large, page-accurate, human-readable.
	LevelCoarse ChunkLevel = "coarse"
	// LevelFine marks a child chunk: small, linked to a parent, used for
	// precise similarity search.
	LevelFine ChunkLevel = "fine"
)

// Chunk is the unit stored and searched. Coarse chunks have an empty ParentID;
// fine chunks reference the coarse chunk they were cut from and inherit its
// page range (child page provenance is coarse-grained on purpose).
type Chunk struct {
	ID            string     `json:"chunk_id"`
	DocumentID    string     `json:"document_id"`
	Level         ChunkLevel `json:"level"`
	ParentID      string     `json:"parent_id,omitempty"`
	PageStart     int        `json:"page_start"`
	PageEnd       int        `json:"page_end"`
	TokenLen      int        `json:"token_len"`
	SentenceCount int        `json:"sentence_count,omitempty"` // fine chunks only
	Text          string     `json:"text"`
	Embedding     []float32  `json:"-"`
}

// SourceMethod records which search path produced a RetrievalHit.
type SourceMethod string

const (
	MethodVector  SourceMethod = "vector"
	MethodKeyword SourceMethod = "keyword"
	MethodHybrid  SourceMethod = "hybrid"
)

// RetrievalHit is an ephemeral per-query search result. Score is the vector
// similarity and is left zero for hits that only the lexical index found —
// the reranker scores those later. RerankScore is attached by the fusion
// pipeline; it alone determines final ordering.
type RetrievalHit struct {
	ChunkID     string       `json:"chunk_id"`
	DocumentID  string       `json:"document_id,omitempty"`
	Level       ChunkLevel   `json:"level,omitempty"`
	ParentID    string       `json:"parent_id,omitempty"`
	PageStart   int          `json:"page_start"`
	PageEnd     int          `json:"page_end"`
	Text        string       `json:"text"`
	Source      string       `json:"source,omitempty"`
	Method      SourceMethod `json:"source_method"`
	Score       float64      `json:"score,omitempty"`
	RerankScore float64      `json:"rerank_score"`
}

// Session groups the messages of one chat. Keyed by a caller-chosen string
// (e.g. a client session id).
type Session struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
}

// Message is one persisted chat turn.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// --- LLM protocol types ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}
