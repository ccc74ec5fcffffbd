// Package docindex maintains the searchable document collections: text
// extraction, chunking, embedding, and one SQLite chunk store per ingested
// document. A Registry owns the full set of collections; nothing here is
// ambient state, and queries only work after an explicit Load.
package docindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-elhaj/hr-bot/internal/store"
)

// ErrDocumentNotFound is returned when no mapping exists for a document ID.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentColumns is the header of the document-to-collection mapping table.
var DocumentColumns = []string{"document_id", "collection_id", "filename", "uploaded_at"}

// Document ties an uploaded file to its collection.
type Document struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Collection Info   `json:"collection"`
}

// Registry owns the set of embedded document collections and the
// document-to-collection mapping used for deletion.
type Registry struct {
	root     string
	chunker  *Chunker
	embedder *Embedder
	docs     *store.Table
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu          sync.RWMutex
	collections map[string]*Collection
	active      map[string]bool
}

// NewRegistry creates a Registry storing collections under root and the
// document mapping table at docsPath. Call Load before querying.
func NewRegistry(root, docsPath string, chunker *Chunker, embedder *Embedder) *Registry {
	return &Registry{
		root:        root,
		chunker:     chunker,
		embedder:    embedder,
		docs:        store.NewTable(docsPath, DocumentColumns),
		logger:      slog.Default(),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		collections: make(map[string]*Collection),
		active:      make(map[string]bool),
	}
}

// Load reopens every persisted collection under the storage root so
// queries keep working across restarts. All reloaded collections start
// active. Collections that fail to open are skipped with a warning.
func (r *Registry) Load() error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("creating collections root: %w", err)
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return fmt.Errorf("reading collections root: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		col, err := openCollection(filepath.Join(r.root, id), id)
		if err != nil {
			r.logger.Warn("skipping unreadable collection", "collection_id", id, "error", err)
			continue
		}
		r.collections[id] = col
		r.active[id] = true
		r.logger.Info("loaded collection", "collection_id", id)
	}
	return nil
}

// Ingest extracts, chunks, and embeds the document at path, persists the
// result as a new active collection, and records the document mapping.
func (r *Registry) Ingest(ctx context.Context, path string) (Document, error) {
	text, err := Extract(path)
	if err != nil {
		return Document{}, fmt.Errorf("extracting %s: %w", filepath.Base(path), err)
	}

	chunks := r.chunker.Split(text)
	if len(chunks) == 0 {
		return Document{}, fmt.Errorf("extracting %s: document has no text", filepath.Base(path))
	}

	stamp := r.now().Format("20060102_150405")
	id := "doc_" + stamp
	dir := filepath.Join(r.root, id)
	// Two uploads inside the same second would land on the same directory;
	// suffix until the name is free.
	for n := 1; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("doc_%s_%d", stamp, n)
		dir = filepath.Join(r.root, id)
	}
	col, err := openCollection(dir, id)
	if err != nil {
		return Document{}, err
	}

	doc, err := r.fill(ctx, col, path, chunks)
	if err != nil {
		// Keep the failed collection out of the index entirely; the caller
		// sees the processing failure and can retry the upload.
		col.setMeta("status", StatusError)
		col.Close()
		os.RemoveAll(dir)
		return Document{}, err
	}

	r.mu.Lock()
	r.collections[id] = col
	r.active[id] = true
	r.mu.Unlock()

	r.logger.Info("ingested document",
		"collection_id", id, "filename", doc.Filename, "chunks", doc.Collection.ChunkCount)
	return doc, nil
}

func (r *Registry) fill(ctx context.Context, col *Collection, path string, texts []string) (Document, error) {
	filename := filepath.Base(path)
	fileType := ""
	if ext := filepath.Ext(filename); ext != "" {
		fileType = ext[1:]
	}

	metas := map[string]string{
		"title":      filename,
		"file_type":  fileType,
		"status":     StatusProcessing,
		"created_at": r.now().UTC().Format(time.RFC3339),
	}
	for k, v := range metas {
		if err := col.setMeta(k, v); err != nil {
			return Document{}, err
		}
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Document{}, fmt.Errorf("embedding %s: %w", filename, err)
	}

	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ID:        r.newID(),
			Seq:       i,
			Text:      text,
			Embedding: vectors[i],
		}
	}
	if err := col.insertChunks(chunks); err != nil {
		return Document{}, err
	}
	if err := col.setMeta("status", StatusActive); err != nil {
		return Document{}, err
	}

	docID := r.newID()
	row := []string{docID, col.ID(), filename, r.now().UTC().Format(time.RFC3339)}
	if err := r.docs.Append(row); err != nil {
		return Document{}, err
	}

	info, err := col.info()
	if err != nil {
		return Document{}, err
	}
	return Document{DocumentID: docID, Filename: filename, Collection: info}, nil
}

// Remove closes and deletes the collection and drops its mapping row.
// Removing an absent ID returns false rather than an error, so repeated
// deletes are harmless.
func (r *Registry) Remove(collectionID string) (bool, error) {
	r.mu.Lock()
	col, ok := r.collections[collectionID]
	delete(r.collections, collectionID)
	delete(r.active, collectionID)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := col.Close(); err != nil {
		r.logger.Warn("closing collection before delete", "collection_id", collectionID, "error", err)
	}
	if err := os.RemoveAll(filepath.Join(r.root, collectionID)); err != nil {
		return false, fmt.Errorf("deleting collection %s: %w", collectionID, err)
	}

	if err := r.dropMapping(collectionID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDocument resolves a document ID through the mapping table and
// removes its collection. Returns ErrDocumentNotFound for unknown IDs.
func (r *Registry) RemoveDocument(documentID string) error {
	rows, err := r.docs.ReadAll()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row[0] == documentID {
			_, err := r.Remove(row[1])
			return err
		}
	}
	return ErrDocumentNotFound
}

func (r *Registry) dropMapping(collectionID string) error {
	rows, err := r.docs.ReadAll()
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, row := range rows {
		if row[1] != collectionID {
			kept = append(kept, row)
		}
	}
	return r.docs.WriteAll(kept)
}

// SetActive restricts the searched set to the given collection IDs.
// Unknown IDs are ignored.
func (r *Registry) SetActive(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.collections[id]; ok {
			r.active[id] = true
		}
	}
}

// Active returns the active collections, restricted to ids when non-empty.
// Unknown IDs are silently filtered out.
func (r *Registry) Active(ids []string) []*Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Collection
	if len(ids) == 0 {
		for id, col := range r.collections {
			if r.active[id] {
				out = append(out, col)
			}
		}
		return out
	}
	for _, id := range ids {
		if col, ok := r.collections[id]; ok && r.active[id] {
			out = append(out, col)
		}
	}
	return out
}

// Documents lists every mapped document with its collection metadata.
func (r *Registry) Documents() ([]Document, error) {
	rows, err := r.docs.ReadAll()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc := Document{DocumentID: row[0], Filename: row[2]}
		if col, ok := r.collections[row[1]]; ok {
			info, err := col.info()
			if err != nil {
				return nil, err
			}
			doc.Collection = info
		} else {
			doc.Collection = Info{CollectionID: row[1], Status: StatusError}
		}
		out = append(out, doc)
	}
	return out, nil
}

// ActiveIDs returns the IDs of the active collections.
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.active))
	for id, on := range r.active {
		if on {
			out = append(out, id)
		}
	}
	return out
}

// Close closes every open collection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, col := range r.collections {
		if err := col.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing collection %s: %w", id, err)
		}
	}
	r.collections = make(map[string]*Collection)
	r.active = make(map[string]bool)
	return firstErr
}
