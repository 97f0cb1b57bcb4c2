package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements CorpusStore and StatsStore on a single SQLite
// database. WAL mode with a single writer connection avoids lock
// contention under concurrent queries.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ CorpusStore = (*SQLiteStore)(nil)
	_ StatsStore  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates the corpus database. An empty path
// creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT NOT NULL,
		tenant_id    TEXT NOT NULL,
		name         TEXT NOT NULL,
		content_type TEXT NOT NULL,
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		tenant_id   TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT NOT NULL,
		embedding   BLOB,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (tenant_id, document_id)
			REFERENCES documents (tenant_id, id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks (tenant_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (tenant_id, document_id, chunk_index);

	CREATE TABLE IF NOT EXISTS score_stats (
		strategy  TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		min       REAL NOT NULL,
		max       REAL NOT NULL,
		mean      REAL NOT NULL,
		std       REAL NOT NULL,
		count     INTEGER NOT NULL,
		PRIMARY KEY (strategy, tenant_id)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument inserts or replaces a document.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, name, content_type, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			content_type = excluded.content_type,
			active = excluded.active`,
		doc.ID, doc.TenantID, doc.Name, doc.ContentType, boolToInt(doc.Active), doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// Document fetches one document or returns sql.ErrNoRows wrapped.
func (s *SQLiteStore) Document(ctx context.Context, tenantID, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, content_type, active, created_at
		FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return scanDocument(row)
}

// Documents lists all documents for a tenant, newest first.
func (s *SQLiteStore) Documents(ctx context.Context, tenantID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, content_type, active, created_at
		FROM documents WHERE tenant_id = ? ORDER BY created_at DESC, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetDocumentActive toggles the admin-managed active flag.
func (s *SQLiteStore) SetDocumentActive(ctx context.Context, tenantID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET active = ? WHERE tenant_id = ? AND id = ?`,
		boolToInt(active), tenantID, id)
	if err != nil {
		return fmt.Errorf("set document active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// DeleteDocument removes a document; chunks cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// SaveChunks inserts chunks in one transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, document_id, tenant_id, chunk_index, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		var blob []byte
		if c.Embedding != nil {
			blob = encodeVector(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.TenantID, c.Index, c.Content, blob, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

const chunkColumns = `c.id, c.document_id, c.tenant_id, c.chunk_index, c.content, c.embedding, c.created_at`

// Chunk fetches one chunk when its owning document is active.
func (s *SQLiteStore) Chunk(ctx context.Context, tenantID, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND c.id = ? AND d.active = 1`, tenantID, id)
	return scanChunk(row)
}

// ChunksByIDs fetches chunks of active documents by ID, preserving
// input order.
func (s *SQLiteStore) ChunksByIDs(ctx context.Context, tenantID string, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND d.active = 1 AND c.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// ChunksByTenant returns all chunks of active documents.
func (s *SQLiteStore) ChunksByTenant(ctx context.Context, tenantID string) ([]*Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND d.active = 1
		ORDER BY c.document_id, c.chunk_index`, tenantID)
}

// ChunksWithEmbeddings returns active chunks carrying a vector, for
// in-process similarity computation.
func (s *SQLiteStore) ChunksWithEmbeddings(ctx context.Context, tenantID string) ([]*Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND d.active = 1 AND c.embedding IS NOT NULL
		ORDER BY c.document_id, c.chunk_index`, tenantID)
}

// SearchContains matches chunk content case-insensitively. Shorter
// content sorts first so tighter matches win ties.
func (s *SQLiteStore) SearchContains(ctx context.Context, tenantID, needle string, limit int) ([]*Chunk, error) {
	if strings.TrimSpace(needle) == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(needle)) + "%"
	return s.queryChunks(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND d.active = 1
		  AND lower(c.content) LIKE ? ESCAPE '\'
		ORDER BY length(c.content), c.rowid
		LIMIT ?`, tenantID, pattern, limit)
}

// DocumentChunkCounts maps each active document to its chunk total.
func (s *SQLiteStore) DocumentChunkCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, COUNT(*) FROM chunks c
		JOIN documents d ON d.tenant_id = c.tenant_id AND d.id = c.document_id
		WHERE c.tenant_id = ? AND d.active = 1
		GROUP BY c.document_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var docID string
		var n int
		if err := rows.Scan(&docID, &n); err != nil {
			return nil, err
		}
		counts[docID] = n
	}
	return counts, rows.Err()
}

// ScoreStats returns persisted stats, or nil when none exist.
func (s *SQLiteStore) ScoreStats(ctx context.Context, strategy, tenantID string) (*ScoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st ScoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT min, max, mean, std, count FROM score_stats
		WHERE strategy = ? AND tenant_id = ?`, strategy, tenantID).
		Scan(&st.Min, &st.Max, &st.Mean, &st.Std, &st.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load score stats: %w", err)
	}
	return &st, nil
}

// SaveScoreStats upserts stats for one (strategy, tenant) key.
func (s *SQLiteStore) SaveScoreStats(ctx context.Context, strategy, tenantID string, stats *ScoreStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_stats (strategy, tenant_id, min, max, mean, std, count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (strategy, tenant_id) DO UPDATE SET
			min = excluded.min,
			max = excluded.max,
			mean = excluded.mean,
			std = excluded.std,
			count = excluded.count`,
		strategy, tenantID, stats.Min, stats.Max, stats.Mean, stats.Std, stats.Count)
	if err != nil {
		return fmt.Errorf("save score stats: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var active int
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.Name, &doc.ContentType, &active, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Active = active != 0
	return &doc, nil
}

func scanChunk(row scanner) (*Chunk, error) {
	var c Chunk
	var blob []byte
	if err := row.Scan(&c.ID, &c.DocumentID, &c.TenantID, &c.Index, &c.Content, &blob, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		c.Embedding = decodeVector(blob)
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE metacharacters in user-supplied needles.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
