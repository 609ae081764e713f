// Package sqlite implements paperbase.Store using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	paperbase "github.com/dqviet/paperbase"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements paperbase.Store backed by a local SQLite file.
// Embeddings are stored as JSON text and vector search is done
// in-process using brute-force cosine similarity.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ paperbase.Store = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: paperbase.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			page_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			level TEXT NOT NULL,
			parent_id TEXT,
			page_start INTEGER NOT NULL,
			page_end INTEGER NOT NULL,
			token_len INTEGER NOT NULL,
			sentence_count INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Indexes on frequently queried columns.
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// StoreDocument replaces a document and all its chunks in a single
// transaction. Chunks from a previous ingest of the same document id are
// dropped first, so re-ingestion supersedes rather than accumulates.
func (s *Store) StoreDocument(ctx context.Context, doc paperbase.Document, chunks []paperbase.Chunk) error {
	start := time.Now()
	s.logger.Debug("sqlite: store document", "id", doc.ID, "title", doc.Title, "source", doc.Source, "chunks", len(chunks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, title, source, sha256, page_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.SHA256, doc.PageCount, doc.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: insert document failed", "id", doc.ID, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}

	for _, chunk := range chunks {
		var embJSON *string
		if len(chunk.Embedding) > 0 {
			v := serializeEmbedding(chunk.Embedding)
			embJSON = &v
		}
		var parentID *string
		if chunk.ParentID != "" {
			parentID = &chunk.ParentID
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, level, parent_id, page_start, page_end, token_len, sentence_count, text, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.DocumentID, string(chunk.Level), parentID,
			chunk.PageStart, chunk.PageEnd, chunk.TokenLen, chunk.SentenceCount,
			chunk.Text, embJSON,
		)
		if err != nil {
			s.logger.Error("sqlite: insert chunk failed", "chunk_id", chunk.ID, "doc_id", doc.ID, "error", err)
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: store document commit failed", "id", doc.ID, "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: store document ok", "id", doc.ID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

// ListDocuments returns documents ordered by creation time (newest first).
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]paperbase.Document, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list documents", "limit", limit)

	query := `SELECT id, title, source, sha256, page_count, created_at FROM documents ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("sqlite: list documents failed", "error", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []paperbase.Document
	for rows.Next() {
		var d paperbase.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.SHA256, &d.PageCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	s.logger.Debug("sqlite: list documents ok", "count", len(docs), "duration", time.Since(start))
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	start := time.Now()
	s.logger.Debug("sqlite: delete document", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete document commit failed", "id", id, "error", err)
		return err
	}
	s.logger.Debug("sqlite: delete document ok", "id", id, "duration", time.Since(start))
	return nil
}

// SearchChunks performs brute-force cosine similarity search over chunks
// that carry embeddings, returning hits tagged as vector provenance.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]paperbase.RetrievalHit, error) {
	start := time.Now()
	s.logger.Debug("sqlite: search chunks", "top_k", topK, "embedding_dim", len(embedding))

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.level, c.parent_id, c.page_start, c.page_end, c.text, c.embedding, d.source
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []paperbase.RetrievalHit
	scanned := 0

	for rows.Next() {
		var h paperbase.RetrievalHit
		var level string
		var parentID sql.NullString
		var embJSON string
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &level, &parentID, &h.PageStart, &h.PageEnd, &h.Text, &embJSON, &h.Source); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		h.Level = paperbase.ChunkLevel(level)
		h.ParentID = parentID.String
		h.Method = paperbase.MethodVector
		h.Score = cosineSimilarity(embedding, stored)
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	s.logger.Debug("sqlite: search chunks ok", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// GetChunksByIDs returns chunks matching the given IDs.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]paperbase.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, level, parent_id, page_start, page_end, token_len, sentence_count, text
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []paperbase.Chunk
	for rows.Next() {
		var c paperbase.Chunk
		var level string
		var parentID sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &level, &parentID, &c.PageStart, &c.PageEnd, &c.TokenLen, &c.SentenceCount, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Level = paperbase.ChunkLevel(level)
		c.ParentID = parentID.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// AllChunks returns a snapshot of every stored chunk for lexical index
// rebuilds.
func (s *Store) AllChunks(ctx context.Context) ([]paperbase.LexicalDoc, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.level, c.parent_id, c.page_start, c.page_end, c.text, d.source
		 FROM chunks c JOIN documents d ON d.id = c.document_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("all chunks: %w", err)
	}
	defer rows.Close()

	var docs []paperbase.LexicalDoc
	for rows.Next() {
		var d paperbase.LexicalDoc
		var level string
		var parentID sql.NullString
		if err := rows.Scan(&d.ChunkID, &d.DocumentID, &level, &parentID, &d.PageStart, &d.PageEnd, &d.Text, &d.Source); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		d.Level = paperbase.ChunkLevel(level)
		d.ParentID = parentID.String
		docs = append(docs, d)
	}
	s.logger.Debug("sqlite: all chunks ok", "count", len(docs), "duration", time.Since(start))
	return docs, rows.Err()
}

// GetOrCreateSession returns the session for a stable external key,
// creating it on first use.
func (s *Store) GetOrCreateSession(ctx context.Context, key string) (paperbase.Session, error) {
	var sess paperbase.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, created_at FROM sessions WHERE key = ?`, key,
	).Scan(&sess.ID, &sess.Key, &sess.CreatedAt)
	if err == nil {
		return sess, nil
	}
	if err != sql.ErrNoRows {
		return paperbase.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess = paperbase.Session{ID: paperbase.NewID(), Key: key, CreatedAt: paperbase.NowUnix()}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, key, created_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Key, sess.CreatedAt,
	); err != nil {
		return paperbase.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Debug("sqlite: session created", "key", key, "id", sess.ID)
	return sess, nil
}

// StoreMessage inserts or replaces a chat message.
func (s *Store) StoreMessage(ctx context.Context, msg paperbase.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, session_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: store message failed", "id", msg.ID, "error", err)
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

// GetMessages returns the most recent messages for a session, ordered
// chronologically (oldest first).
func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]paperbase.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []paperbase.Message
	for rows.Next() {
		var m paperbase.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to chronological order (oldest first).
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
