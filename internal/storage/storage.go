package storage

import (
	"context"
	"errors"
	"time"

	"github.com/solmem/solution-memory-mcp/internal/taxonomy"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate record
	ErrAlreadyExists = errors.New("already exists")
)

// RecordStore defines the interface for the canonical record store with
// keyword search. Implementations keep the keyword index synchronized with
// the canonical table as part of every mutation, so a search issued
// immediately after a save observes the new record.
type RecordStore interface {
	// Record operations
	SaveRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	GetRecords(ctx context.Context, ids []string) ([]*Record, error)
	DeleteRecord(ctx context.Context, id string) (bool, error)
	ListRecordIDs(ctx context.Context) ([]string, error)

	// Search operations
	SearchKeyword(ctx context.Context, query string, limit int) ([]KeywordMatch, error)
	FilterByTags(ctx context.Context, ids []string, tags []string) ([]string, error)

	// Tag operations
	ListTags(ctx context.Context, category *taxonomy.Category) ([]TagCount, error)

	Close() error
}

// Record is the canonical problem/solution entry.
//
// ID is opaque and immutable once assigned; it identifies the record in both
// the keyword store and the vector index.
type Record struct {
	ID            string
	Title         string
	Problem       string
	Solution      string
	RootCause     string // optional
	ErrorMessages []string
	Tags          []string
	ProjectName   string // optional
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KeywordMatch is a single keyword search hit with its normalized score.
// Scores lie in (0,1] for non-empty result sets, with the best hit at 1.0.
type KeywordMatch struct {
	RecordID string
	Score    float64
}

// TagCount is a tag with the number of records associated with it.
type TagCount struct {
	Name     string
	Category taxonomy.Category
	Count    int
}
