// Package storage provides SQLite-based persistence for solution records.
//
// The storage layer manages:
//   - Solution records (problem, solution, root cause, error messages)
//   - Tags with automatic category classification
//   - FTS5 full-text keyword search with normalized BM25 scores
//
// # Database Schema
//
// Tables:
//   - solutions: Canonical solution records keyed by UUID
//   - tags: Tag names with their taxonomy category
//   - solution_tags: Many-to-many links between solutions and tags
//   - solutions_fts: FTS5 external-content index over the searchable text
//
// The FTS index has no triggers. SaveRecord and DeleteRecord update
// solutions_fts inside the same transaction as the canonical row, so a
// keyword search issued immediately after a save observes the new record.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore("~/.solution-memory/solutions.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	record := &storage.Record{
//	    Title:    "Docker container OOM",
//	    Problem:  "container killed under load",
//	    Solution: "raise the memory limit",
//	    Tags:     []string{"Docker"},
//	}
//	err = store.SaveRecord(ctx, record)
//
//	matches, err := store.SearchKeyword(ctx, "container killed", 10)
//
// # Keyword Scores
//
// SearchKeyword normalizes raw BM25 scores by dividing each by the best
// score in the result set, so non-empty results always lie in (0,1] with
// the top hit at exactly 1.0. Queries that FTS5 rejects as malformed
// return an empty result set rather than an error.
//
// # Build Modes
//
// Two SQLite drivers are supported via build tags:
//   - cgo_sqlite: mattn/go-sqlite3 (requires CGO, built-in FTS5)
//   - default: modernc.org/sqlite (pure Go, no CGO required)
package storage
