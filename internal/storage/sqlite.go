package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solmem/solution-memory-mcp/internal/taxonomy"
)

// SQLiteStore implements the RecordStore interface using SQLite with an
// FTS5 keyword index. The index is updated explicitly inside the same
// transaction as every canonical mutation rather than via triggers.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite record store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRecord persists a record, its tag links, and its keyword index entry
// in a single transaction. An empty ID is assigned a new UUID; zero
// timestamps are set to now. Re-saving an existing ID returns
// ErrAlreadyExists.
func (s *SQLiteStore) SaveRecord(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	errJSON, err := json.Marshal(record.ErrorMessages)
	if err != nil {
		return fmt.Errorf("failed to encode error messages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var rootCause, projectName interface{}
	if record.RootCause != "" {
		rootCause = record.RootCause
	}
	if record.ProjectName != "" {
		projectName = record.ProjectName
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO solutions (id, title, problem, solution, root_cause, error_messages, project_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Title, record.Problem, record.Solution,
		rootCause, string(errJSON), projectName, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("record %s: %w", record.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	// Index the searchable text under the canonical row's rowid.
	rowid, err := result.LastInsertId()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO solutions_fts (rowid, title, problem, solution, error_messages)
		VALUES (?, ?, ?, ?, ?)
	`, rowid, record.Title, record.Problem, record.Solution, strings.Join(record.ErrorMessages, " "))
	if err != nil {
		return fmt.Errorf("failed to index record: %w", err)
	}

	for _, tagName := range record.Tags {
		if err := ensureTagAndLink(ctx, tx, record.ID, tagName); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ensureTagAndLink registers the tag if absent and links it to the record.
// An existing tag keeps its stored category; re-inserting is a no-op.
func ensureTagAndLink(ctx context.Context, tx *sql.Tx, recordID, tagName string) error {
	category := taxonomy.Classify(tagName)

	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO tags (name, category) VALUES (?, ?)",
		tagName, string(category))
	if err != nil {
		return fmt.Errorf("failed to register tag %q: %w", tagName, err)
	}

	var tagID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", tagName).Scan(&tagID)
	if err != nil {
		return fmt.Errorf("failed to look up tag %q: %w", tagName, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO solution_tags (solution_id, tag_id) VALUES (?, ?)",
		recordID, tagID)
	if err != nil {
		return fmt.Errorf("failed to link tag %q: %w", tagName, err)
	}
	return nil
}

// GetRecord retrieves a record by ID, including its tag names.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, title, problem, solution, root_cause, error_messages, project_name, created_at, updated_at
		FROM solutions
		WHERE id = ?
	`
	var record Record
	var rootCause, projectName sql.NullString
	var errJSON string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Title, &record.Problem, &record.Solution,
		&rootCause, &errJSON, &projectName, &record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rootCause.Valid {
		record.RootCause = rootCause.String
	}
	if projectName.Valid {
		record.ProjectName = projectName.String
	}
	if err := json.Unmarshal([]byte(errJSON), &record.ErrorMessages); err != nil {
		return nil, fmt.Errorf("failed to decode error messages for %s: %w", id, err)
	}

	tags, err := s.recordTags(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Tags = tags

	return &record, nil
}

// recordTags returns the tag names linked to a record.
func (s *SQLiteStore) recordTags(ctx context.Context, recordID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		JOIN solution_tags st ON t.id = st.tag_id
		WHERE st.solution_id = ?
		ORDER BY t.name
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// GetRecords retrieves multiple records by ID. IDs with no matching record
// are skipped rather than reported as errors.
func (s *SQLiteStore) GetRecords(ctx context.Context, ids []string) ([]*Record, error) {
	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		record, err := s.GetRecord(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteRecord removes the canonical row, its keyword index entry, and its
// tag associations in one transaction. It reports whether a row existed.
// The tag rows themselves persist.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	// The external-content FTS table needs the old row values to delete.
	var rowid int64
	var title, problem, solution, errJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT rowid, title, problem, solution, error_messages FROM solutions WHERE id = ?", id,
	).Scan(&rowid, &title, &problem, &solution, &errJSON)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var errMessages []string
	_ = json.Unmarshal([]byte(errJSON), &errMessages)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO solutions_fts (solutions_fts, rowid, title, problem, solution, error_messages)
		VALUES ('delete', ?, ?, ?, ?, ?)
	`, rowid, title, problem, solution, strings.Join(errMessages, " "))
	if err != nil {
		return false, fmt.Errorf("failed to deindex record: %w", err)
	}

	// Cascades to solution_tags.
	if _, err := tx.ExecContext(ctx, "DELETE FROM solutions WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ListRecordIDs returns every canonical record ID, oldest first.
func (s *SQLiteStore) ListRecordIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM solutions ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchKeyword runs a ranked full-text match over title, problem, solution,
// and error messages. Raw bm25 ranks (lower is better) are negated and
// divided by the maximum so results land in (0,1] with the best hit at 1.0;
// a non-positive maximum maps every score to 0. A query the FTS engine
// cannot parse yields an empty result set, not an error.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, query string, limit int) ([]KeywordMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, bm25(solutions_fts) AS score
		FROM solutions_fts
		JOIN solutions s ON solutions_fts.rowid = s.rowid
		WHERE solutions_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, query, limit)
	if err != nil {
		if isFTSSyntaxErr(err) {
			return []KeywordMatch{}, nil
		}
		return nil, fmt.Errorf("failed to execute keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]KeywordMatch, 0)
	for rows.Next() {
		var m KeywordMatch
		if err := rows.Scan(&m.RecordID, &m.Score); err != nil {
			return nil, err
		}
		m.Score = -m.Score
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		if isFTSSyntaxErr(err) {
			return []KeywordMatch{}, nil
		}
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	maxScore := matches[0].Score
	for _, m := range matches[1:] {
		if m.Score > maxScore {
			maxScore = m.Score
		}
	}
	for i := range matches {
		if maxScore > 0 {
			matches[i].Score = matches[i].Score / maxScore
		} else {
			matches[i].Score = 0
		}
	}
	return matches, nil
}

// isFTSSyntaxErr reports whether an error is an FTS5 query-syntax failure
// rather than a storage fault.
func isFTSSyntaxErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unknown special query") ||
		strings.Contains(msg, "malformed MATCH") ||
		strings.Contains(msg, "no such column")
}

// FilterByTags keeps the IDs associated with at least one of the given tag
// names (OR semantics). An empty tag list returns the input unchanged.
func (s *SQLiteStore) FilterByTags(ctx context.Context, ids []string, tags []string) ([]string, error) {
	if len(ids) == 0 || len(tags) == 0 {
		return ids, nil
	}

	idPlaceholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	tagPlaceholders := strings.TrimRight(strings.Repeat("?,", len(tags)), ",")

	args := make([]interface{}, 0, len(ids)+len(tags))
	for _, id := range ids {
		args = append(args, id)
	}
	for _, tag := range tags {
		args = append(args, tag)
	}

	query := `
		SELECT DISTINCT st.solution_id
		FROM solution_tags st
		JOIN tags t ON st.tag_id = t.id
		WHERE st.solution_id IN (` + idPlaceholders + `)
		AND t.name IN (` + tagPlaceholders + `)
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter by tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	filtered := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		filtered = append(filtered, id)
	}
	return filtered, rows.Err()
}

// ListTags returns every tag with its record count, ordered by count
// descending. A nil category returns all categories.
func (s *SQLiteStore) ListTags(ctx context.Context, category *taxonomy.Category) ([]TagCount, error) {
	query := `
		SELECT t.name, t.category, COUNT(st.solution_id) AS count
		FROM tags t
		LEFT JOIN solution_tags st ON t.id = st.tag_id
	`
	args := []interface{}{}
	if category != nil {
		query += " WHERE t.category = ?"
		args = append(args, string(*category))
	}
	query += " GROUP BY t.id ORDER BY count DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]TagCount, 0)
	for rows.Next() {
		var tc TagCount
		var cat string
		if err := rows.Scan(&tc.Name, &cat, &tc.Count); err != nil {
			return nil, err
		}
		tc.Category = taxonomy.Category(cat)
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}
