package search

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/solmem/solution-memory-mcp/internal/storage"
	"github.com/solmem/solution-memory-mcp/internal/vectorindex"
)

// Search modes
const (
	ModeHybrid   = "hybrid"
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// DefaultSemanticWeight is the share of the fused score contributed by
// semantic similarity. The keyword weight is always its complement.
const DefaultSemanticWeight = 0.6

// summaryProblemLen caps the problem text in search results.
const summaryProblemLen = 200

// Result is a scored record summary. Problem is truncated; all scores are
// rounded to 4 decimal places.
type Result struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Problem       string    `json:"problem"`
	Tags          []string  `json:"tags"`
	ProjectName   string    `json:"project_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Relevance     float64   `json:"relevance"`
	SemanticScore float64   `json:"semantic_score"`
	KeywordScore  float64   `json:"keyword_score"`
}

// scored is an internal candidate before materialization.
type scored struct {
	recordID      string
	semanticScore float64
	keywordScore  float64
	relevance     float64
}

// Engine fuses keyword and semantic search over the same record corpus.
// Both backing stores are read-only from the engine's point of view; it
// holds no mutable state of its own, so a single Engine is safe for
// concurrent use.
type Engine struct {
	store          storage.RecordStore
	vectors        *vectorindex.Index
	semanticWeight float64
	keywordWeight  float64
}

// NewEngine creates a search engine. Weights outside [0,1] fall back to
// DefaultSemanticWeight.
func NewEngine(store storage.RecordStore, vectors *vectorindex.Index, semanticWeight float64) *Engine {
	if semanticWeight < 0 || semanticWeight > 1 {
		semanticWeight = DefaultSemanticWeight
	}
	return &Engine{
		store:          store,
		vectors:        vectors,
		semanticWeight: semanticWeight,
		keywordWeight:  1 - semanticWeight,
	}
}

// Search runs a query in the given mode and returns up to limit summaries
// sorted by relevance. An unrecognized mode falls back to hybrid. Tags, when
// provided, keep only candidates carrying at least one of the named tags.
func (e *Engine) Search(ctx context.Context, query string, limit int, tags []string, mode string) ([]Result, error) {
	var candidates []scored
	var err error

	// Each branch over-fetches so tag filtering still has enough
	// candidates to fill the final page.
	switch mode {
	case ModeSemantic:
		candidates, err = e.semanticSearch(ctx, query, limit*2)
	case ModeKeyword:
		candidates, err = e.keywordSearch(ctx, query, limit*2)
	default:
		candidates, err = e.hybridSearch(ctx, query, limit*2)
	}
	if err != nil {
		return nil, err
	}

	if len(tags) > 0 && len(candidates) > 0 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.recordID
		}
		kept, err := e.store.FilterByTags(ctx, ids, tags)
		if err != nil {
			return nil, fmt.Errorf("failed to filter by tags: %w", err)
		}
		keptSet := make(map[string]struct{}, len(kept))
		for _, id := range kept {
			keptSet[id] = struct{}{}
		}
		filtered := candidates[:0]
		for _, c := range candidates {
			if _, ok := keptSet[c.recordID]; ok {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].relevance != candidates[j].relevance {
			return candidates[i].relevance > candidates[j].relevance
		}
		return candidates[i].recordID < candidates[j].recordID
	})
	if limit < len(candidates) {
		candidates = candidates[:limit]
	}

	return e.materialize(ctx, candidates)
}

// hybridSearch merges both sides with a weighted score. A record found by
// only one side contributes 0 for the missing component. If one side fails
// the other still answers; only a double failure is an error.
func (e *Engine) hybridSearch(ctx context.Context, query string, limit int) ([]scored, error) {
	semantic := make(map[string]float64)
	keyword := make(map[string]float64)

	semMatches, semErr := e.vectors.Search(ctx, query, limit)
	if semErr != nil {
		log.Printf("hybrid search: semantic side failed, degrading to keyword only: %v", semErr)
	} else {
		for _, m := range semMatches {
			semantic[m.RecordID] = m.Score
		}
	}

	kwMatches, kwErr := e.store.SearchKeyword(ctx, query, limit)
	if kwErr != nil {
		log.Printf("hybrid search: keyword side failed, degrading to semantic only: %v", kwErr)
	} else {
		for _, m := range kwMatches {
			keyword[m.RecordID] = m.Score
		}
	}

	if semErr != nil && kwErr != nil {
		return nil, fmt.Errorf("both search backends failed: semantic: %v; keyword: %v", semErr, kwErr)
	}

	seen := make(map[string]struct{}, len(semantic)+len(keyword))
	results := make([]scored, 0, len(semantic)+len(keyword))
	for id, score := range semantic {
		seen[id] = struct{}{}
		results = append(results, scored{
			recordID:      id,
			semanticScore: score,
			keywordScore:  keyword[id],
			relevance:     e.semanticWeight*score + e.keywordWeight*keyword[id],
		})
	}
	for id, score := range keyword {
		if _, ok := seen[id]; ok {
			continue
		}
		results = append(results, scored{
			recordID:     id,
			keywordScore: score,
			relevance:    e.keywordWeight * score,
		})
	}

	return results, nil
}

func (e *Engine) semanticSearch(ctx context.Context, query string, limit int) ([]scored, error) {
	matches, err := e.vectors.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	results := make([]scored, len(matches))
	for i, m := range matches {
		results[i] = scored{recordID: m.RecordID, semanticScore: m.Score, relevance: m.Score}
	}
	return results, nil
}

func (e *Engine) keywordSearch(ctx context.Context, query string, limit int) ([]scored, error) {
	matches, err := e.store.SearchKeyword(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]scored, len(matches))
	for i, m := range matches {
		results[i] = scored{recordID: m.RecordID, keywordScore: m.Score, relevance: m.Score}
	}
	return results, nil
}

// materialize resolves candidates against the canonical store. Candidates
// whose record has disappeared are dropped silently; the index repairs
// itself on the next reconcile.
func (e *Engine) materialize(ctx context.Context, candidates []scored) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.recordID
	}

	records, err := e.store.GetRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	byID := make(map[string]*storage.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		record, ok := byID[c.recordID]
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:            record.ID,
			Title:         record.Title,
			Problem:       truncateProblem(record.Problem),
			Tags:          record.Tags,
			ProjectName:   record.ProjectName,
			CreatedAt:     record.CreatedAt,
			Relevance:     roundScore(c.relevance),
			SemanticScore: roundScore(c.semanticScore),
			KeywordScore:  roundScore(c.keywordScore),
		})
	}

	return results, nil
}

func truncateProblem(problem string) string {
	runes := []rune(problem)
	if len(runes) <= summaryProblemLen {
		return problem
	}
	return string(runes[:summaryProblemLen]) + "..."
}

func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}
