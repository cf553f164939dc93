package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/solmem/solution-memory-mcp/internal/storage"
	"github.com/solmem/solution-memory-mcp/internal/vectorindex"
)

// reconcileConcurrency caps parallel re-embedding. Embedding calls dominate
// the cost; the SQLite writes behind them serialize anyway.
const reconcileConcurrency = 4

// ReconcileStats reports what a reconcile pass did.
type ReconcileStats struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Removed  int `json:"removed"`
}

// Reconcile brings the vector index back in line with the canonical store.
// Records missing a vector (or carrying one from a different provider) are
// re-embedded; vectors whose record is gone are removed. The canonical
// store is never modified.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	storeIDs, err := e.store.ListRecordIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list records: %w", err)
	}
	stats.Checked = len(storeIDs)

	indexedIDs, err := e.vectors.ListIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list indexed records: %w", err)
	}
	staleIDs, err := e.vectors.StaleIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list stale records: %w", err)
	}

	indexed := make(map[string]struct{}, len(indexedIDs))
	for _, id := range indexedIDs {
		indexed[id] = struct{}{}
	}
	stale := make(map[string]struct{}, len(staleIDs))
	for _, id := range staleIDs {
		stale[id] = struct{}{}
	}
	inStore := make(map[string]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		inStore[id] = struct{}{}
	}

	var toRepair []string
	for _, id := range storeIDs {
		if _, ok := indexed[id]; !ok {
			toRepair = append(toRepair, id)
			continue
		}
		if _, ok := stale[id]; ok {
			toRepair = append(toRepair, id)
		}
	}

	// Orphaned vectors: indexed but no canonical record
	for _, id := range indexedIDs {
		if _, ok := inStore[id]; ok {
			continue
		}
		removed, err := e.vectors.Delete(ctx, id)
		if err != nil {
			return stats, fmt.Errorf("failed to remove orphaned vector %s: %w", id, err)
		}
		if removed {
			stats.Removed++
		}
	}

	if len(toRepair) == 0 {
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	repaired := make(chan string, len(toRepair))

	for _, id := range toRepair {
		g.Go(func() error {
			record, err := e.store.GetRecord(gctx, id)
			if err != nil {
				// Deleted between listing and repair, nothing to do
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load record %s: %w", id, err)
			}

			if err := e.vectors.Update(gctx, vectorindex.Entry{
				RecordID:      record.ID,
				Title:         record.Title,
				Problem:       record.Problem,
				ErrorMessages: record.ErrorMessages,
			}); err != nil {
				return err
			}

			repaired <- id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	close(repaired)
	stats.Repaired = len(repaired)

	return stats, nil
}
