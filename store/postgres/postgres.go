// Package postgres implements paperbase.Store using PostgreSQL with
// pgvector for native vector similarity search.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool; Close here is a
// no-op so the store composes with other users of the same pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	paperbase "github.com/dqviet/paperbase"
)

// Store implements paperbase.Store backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1024, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert time.
// Only affects new table creation (no ALTER on existing tables).
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate
// list size). Higher values improve recall at the cost of latency.
// Default: pgvector's 40. Applied during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ paperbase.Store = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			page_count INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			level TEXT NOT NULL,
			parent_id TEXT,
			page_start INTEGER NOT NULL,
			page_end INTEGER NOT NULL,
			token_len INTEGER NOT NULL,
			sentence_count INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding %s
		)`, vtype),
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_parent_idx ON chunks(parent_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}

	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// StoreDocument replaces a document and all its chunks in a single
// transaction. Chunks from a previous ingest of the same document id are
// dropped first, so re-ingestion supersedes rather than accumulates.
func (s *Store) StoreDocument(ctx context.Context, doc paperbase.Document, chunks []paperbase.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("postgres: delete stale chunks: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, title, source, sha256, page_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   source = EXCLUDED.source,
		   sha256 = EXCLUDED.sha256,
		   page_count = EXCLUDED.page_count,
		   created_at = EXCLUDED.created_at`,
		doc.ID, doc.Title, doc.Source, doc.SHA256, doc.PageCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}

	for _, chunk := range chunks {
		var parentID *string
		if chunk.ParentID != "" {
			parentID = &chunk.ParentID
		}
		var embStr *string
		if len(chunk.Embedding) > 0 {
			v := serializeEmbedding(chunk.Embedding)
			embStr = &v
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, level, parent_id, page_start, page_end, token_len, sentence_count, text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)`,
			chunk.ID, chunk.DocumentID, string(chunk.Level), parentID,
			chunk.PageStart, chunk.PageEnd, chunk.TokenLen, chunk.SentenceCount,
			chunk.Text, embStr)
		if err != nil {
			return fmt.Errorf("postgres: insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// ListDocuments returns documents ordered by creation time (newest first).
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]paperbase.Document, error) {
	q := `SELECT id, title, source, sha256, page_count, created_at FROM documents ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var docs []paperbase.Document
	for rows.Next() {
		var d paperbase.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.SHA256, &d.PageCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete document chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	return tx.Commit(ctx)
}

// SearchChunks performs HNSW cosine similarity search over chunks that
// carry embeddings, returning hits tagged as vector provenance.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]paperbase.RetrievalHit, error) {
	embStr := serializeEmbedding(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, c.level, c.parent_id, c.page_start, c.page_end, c.text, d.source,
		        1 - (c.embedding <=> $1::vector) AS score
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.embedding IS NOT NULL
		 ORDER BY c.embedding <=> $1::vector
		 LIMIT $2`,
		embStr, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: search chunks: %w", err)
	}
	defer rows.Close()

	var results []paperbase.RetrievalHit
	for rows.Next() {
		var h paperbase.RetrievalHit
		var level string
		var parentID *string
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &level, &parentID, &h.PageStart, &h.PageEnd, &h.Text, &h.Source, &h.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		h.Level = paperbase.ChunkLevel(level)
		if parentID != nil {
			h.ParentID = *parentID
		}
		h.Method = paperbase.MethodVector
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetChunksByIDs returns chunks matching the given IDs.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]paperbase.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, level, parent_id, page_start, page_end, token_len, sentence_count, text
		 FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []paperbase.Chunk
	for rows.Next() {
		var c paperbase.Chunk
		var level string
		var parentID *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &level, &parentID, &c.PageStart, &c.PageEnd, &c.TokenLen, &c.SentenceCount, &c.Text); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Level = paperbase.ChunkLevel(level)
		if parentID != nil {
			c.ParentID = *parentID
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// AllChunks returns a snapshot of every stored chunk for lexical index
// rebuilds.
func (s *Store) AllChunks(ctx context.Context) ([]paperbase.LexicalDoc, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, c.level, c.parent_id, c.page_start, c.page_end, c.text, d.source
		 FROM chunks c JOIN documents d ON d.id = c.document_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: all chunks: %w", err)
	}
	defer rows.Close()

	var docs []paperbase.LexicalDoc
	for rows.Next() {
		var d paperbase.LexicalDoc
		var level string
		var parentID *string
		if err := rows.Scan(&d.ChunkID, &d.DocumentID, &level, &parentID, &d.PageStart, &d.PageEnd, &d.Text, &d.Source); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		d.Level = paperbase.ChunkLevel(level)
		if parentID != nil {
			d.ParentID = *parentID
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetOrCreateSession returns the session for a stable external key,
// creating it on first use.
func (s *Store) GetOrCreateSession(ctx context.Context, key string) (paperbase.Session, error) {
	var sess paperbase.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, key, created_at FROM sessions WHERE key = $1`, key,
	).Scan(&sess.ID, &sess.Key, &sess.CreatedAt)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return paperbase.Session{}, fmt.Errorf("postgres: get session: %w", err)
	}

	sess = paperbase.Session{ID: paperbase.NewID(), Key: key, CreatedAt: paperbase.NowUnix()}
	// A concurrent request may create the same key; defer to the winner.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, key, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		sess.ID, sess.Key, sess.CreatedAt)
	if err != nil {
		return paperbase.Session{}, fmt.Errorf("postgres: create session: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`SELECT id, key, created_at FROM sessions WHERE key = $1`, key,
	).Scan(&sess.ID, &sess.Key, &sess.CreatedAt)
	if err != nil {
		return paperbase.Session{}, fmt.Errorf("postgres: get session: %w", err)
	}
	return sess, nil
}

// StoreMessage inserts or replaces a chat message.
func (s *Store) StoreMessage(ctx context.Context, msg paperbase.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   session_id = EXCLUDED.session_id,
		   role = EXCLUDED.role,
		   content = EXCLUDED.content,
		   created_at = EXCLUDED.created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: store message: %w", err)
	}
	return nil
}

// GetMessages returns the most recent messages for a session, ordered
// chronologically (oldest first).
func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]paperbase.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: get messages: %w", err)
	}
	defer rows.Close()

	var messages []paperbase.Message
	for rows.Next() {
		var m paperbase.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate messages: %w", err)
	}

	// Reverse to chronological order (oldest first).
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// serializeEmbedding renders a vector in pgvector's text format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
