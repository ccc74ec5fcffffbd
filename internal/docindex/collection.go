package docindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Collection statuses.
const (
	StatusProcessing = "processing"
	StatusActive     = "active"
	StatusError      = "error"
)

// Chunk is one embedded fragment of a document.
type Chunk struct {
	ID        string
	Seq       int
	Text      string
	Embedding []float32
}

// ScoredChunk is a chunk with its similarity to a query vector.
type ScoredChunk struct {
	CollectionID string  `json:"collection_id"`
	ChunkID      string  `json:"chunk_id"`
	Seq          int     `json:"seq"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
}

// Info is the metadata record of a collection.
type Info struct {
	CollectionID string `json:"collection_id"`
	Title        string `json:"title"`
	FileType     string `json:"file_type"`
	ChunkCount   int    `json:"chunk_count"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// Collection is one independently searchable set of embedded chunks,
// persisted as a SQLite database in its own directory.
type Collection struct {
	id  string
	dir string
	db  *sql.DB
}

// openCollection opens (or creates) the chunk database for the collection
// directory, creating the schema when missing.
func openCollection(dir, id string) (*Collection, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating collection directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "chunks.db"))
	if err != nil {
		return nil, fmt.Errorf("opening chunk database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging chunk database: %w", err)
	}

	// Limit to a single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating collection schema: %w", err)
		}
	}

	return &Collection{id: id, dir: dir, db: db}, nil
}

// ID returns the collection identifier.
func (c *Collection) ID() string { return c.id }

// Close closes the underlying database.
func (c *Collection) Close() error { return c.db.Close() }

// setMeta upserts a metadata key.
func (c *Collection) setMeta(key, value string) error {
	_, err := c.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}

// meta reads a metadata key, empty string when absent.
func (c *Collection) meta(key string) (string, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, nil
}

// insertChunks stores the chunks in one transaction.
func (c *Collection) insertChunks(chunks []Chunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (id, seq, text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ch := range chunks {
		if _, err := stmt.Exec(ch.ID, ch.Seq, ch.Text, encodeFloat32s(ch.Embedding), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

// Search performs brute-force cosine similarity over every chunk in the
// collection, returning the top-K most similar. Collections hold one
// document's worth of chunks, so a full scan is the right tool here.
func (c *Collection) Search(vector []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := c.db.Query("SELECT id, seq, text, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var top []ScoredChunk
	for rows.Next() {
		var (
			id   string
			seq  int
			text string
			blob []byte
		)
		if err := rows.Scan(&id, &seq, &text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		emb, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		sc := ScoredChunk{
			CollectionID: c.id,
			ChunkID:      id,
			Seq:          seq,
			Text:         text,
			Score:        cosine(vector, emb, queryNorm),
		}
		top = insertByScore(top, sc, topK)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return top, nil
}

// insertByScore inserts sc into the descending-ordered slice, keeping at
// most topK entries. Fine for the small topK values used here.
func insertByScore(sorted []ScoredChunk, sc ScoredChunk, topK int) []ScoredChunk {
	pos := len(sorted)
	for pos > 0 && sc.Score > sorted[pos-1].Score {
		pos--
	}
	if pos >= topK {
		return sorted
	}
	sorted = append(sorted, ScoredChunk{})
	copy(sorted[pos+1:], sorted[pos:])
	sorted[pos] = sc
	if len(sorted) > topK {
		sorted = sorted[:topK]
	}
	return sorted
}

// chunkCount returns the number of stored chunks.
func (c *Collection) chunkCount() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// info assembles the collection's metadata record.
func (c *Collection) info() (Info, error) {
	out := Info{CollectionID: c.id}
	var err error
	if out.Title, err = c.meta("title"); err != nil {
		return Info{}, err
	}
	if out.FileType, err = c.meta("file_type"); err != nil {
		return Info{}, err
	}
	if out.Status, err = c.meta("status"); err != nil {
		return Info{}, err
	}
	if out.CreatedAt, err = c.meta("created_at"); err != nil {
		return Info{}, err
	}
	if out.ChunkCount, err = c.chunkCount(); err != nil {
		return Info{}, err
	}
	return out, nil
}
