package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/solmem/solution-memory-mcp/internal/embedder"
	"github.com/solmem/solution-memory-mcp/internal/storage"
)

// Entry is the slice of a record the index embeds and stores. The vector
// is computed from the derived document, not from the entry fields raw.
type Entry struct {
	RecordID      string
	Title         string
	Problem       string
	ErrorMessages []string
}

// Match is a record scored against a query by cosine similarity.
type Match struct {
	RecordID string
	Score    float64
}

// Index persists one embedding per record in its own SQLite file and ranks
// records against a query vector in Go. It delegates all embedding to the
// configured Embedder and stores which provider/model produced each vector,
// so stale entries can be detected after a provider switch.
type Index struct {
	db  *sql.DB
	emb embedder.Embedder
}

const vectorSchema = `
CREATE TABLE IF NOT EXISTS vectors (
    record_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    document TEXT NOT NULL,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// New opens (or creates) the vector index database at dbPath.
func New(dbPath string, emb embedder.Embedder) (*Index, error) {
	db, err := sql.Open(storage.DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(vectorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create vector schema: %w", err)
	}

	return &Index{db: db, emb: emb}, nil
}

// Close closes the database connection. The embedder is owned by the caller.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// BuildDocument derives the text that gets embedded for a record: the
// problem statement, plus the error messages when present. Title and
// solution are deliberately excluded so the vector captures what went
// wrong rather than how it was fixed.
func BuildDocument(problem string, errorMessages []string) string {
	if len(errorMessages) == 0 {
		return problem
	}
	return problem + " Error messages: " + strings.Join(errorMessages, " | ")
}

// Add embeds the entry's document and inserts it. Adding an ID that is
// already indexed is an error; use Update to re-embed in place.
func (ix *Index) Add(ctx context.Context, entry Entry) error {
	doc := BuildDocument(entry.Problem, entry.ErrorMessages)

	emb, err := ix.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: doc})
	if err != nil {
		return fmt.Errorf("failed to embed record %s: %w", entry.RecordID, err)
	}

	_, err = ix.db.ExecContext(ctx, `
		INSERT INTO vectors (record_id, title, document, vector, dimension, provider, model)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordID, entry.Title, doc, serializeVector(emb.Vector), emb.Dimension, emb.Provider, emb.Model)
	if err != nil {
		return fmt.Errorf("failed to index record %s: %w", entry.RecordID, err)
	}

	return nil
}

// Update embeds the entry's document and upserts it, replacing any
// existing vector for the record.
func (ix *Index) Update(ctx context.Context, entry Entry) error {
	doc := BuildDocument(entry.Problem, entry.ErrorMessages)

	emb, err := ix.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: doc})
	if err != nil {
		return fmt.Errorf("failed to embed record %s: %w", entry.RecordID, err)
	}

	_, err = ix.db.ExecContext(ctx, `
		INSERT INTO vectors (record_id, title, document, vector, dimension, provider, model)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			title = excluded.title,
			document = excluded.document,
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model`,
		entry.RecordID, entry.Title, doc, serializeVector(emb.Vector), emb.Dimension, emb.Provider, emb.Model)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", entry.RecordID, err)
	}

	return nil
}

// Search embeds the query and returns up to limit records ranked by cosine
// similarity, best first. An empty index returns no matches without
// calling the embedder.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	count, err := ix.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 || limit <= 0 {
		return []Match{}, nil
	}

	emb, err := ix.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, "SELECT record_id, vector FROM vectors")
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]Match, 0, count)
	for rows.Next() {
		var recordID string
		var blob []byte
		if err := rows.Scan(&recordID, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(emb.Vector) {
			continue // Stale entry from a different provider, skip
		}

		matches = append(matches, Match{
			RecordID: recordID,
			Score:    cosineSimilarity(emb.Vector, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].RecordID < matches[j].RecordID
	})

	if limit > len(matches) {
		limit = len(matches)
	}
	return matches[:limit], nil
}

// Delete removes the vector for a record. Returns false if the record was
// not indexed.
func (ix *Index) Delete(ctx context.Context, recordID string) (bool, error) {
	result, err := ix.db.ExecContext(ctx, "DELETE FROM vectors WHERE record_id = ?", recordID)
	if err != nil {
		return false, fmt.Errorf("failed to delete vector for %s: %w", recordID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Count returns the number of indexed records.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// ListIDs returns the IDs of all indexed records.
func (ix *Index) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, "SELECT record_id FROM vectors ORDER BY record_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StaleIDs returns the IDs of entries whose stored dimension does not match
// the configured embedder, i.e. vectors produced by a different provider.
func (ix *Index) StaleIDs(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, "SELECT record_id FROM vectors WHERE dimension != ?", ix.emb.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
