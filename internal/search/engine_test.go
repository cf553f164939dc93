package search

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solmem/solution-memory-mcp/internal/embedder"
	"github.com/solmem/solution-memory-mcp/internal/storage"
	"github.com/solmem/solution-memory-mcp/internal/vectorindex"
)

type testEnv struct {
	store   *storage.SQLiteStore
	vectors *vectorindex.Index
	engine  *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "solutions.db"))
	require.NoError(t, err)

	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	vectors, err := vectorindex.New(filepath.Join(dir, "vectors.db"), local)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = vectors.Close()
		_ = local.Close()
		_ = store.Close()
	})

	return &testEnv{
		store:   store,
		vectors: vectors,
		engine:  NewEngine(store, vectors, DefaultSemanticWeight),
	}
}

// save persists a record to both stores, the way the service layer does.
func (env *testEnv) save(t *testing.T, record *storage.Record) *storage.Record {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, env.store.SaveRecord(ctx, record))
	require.NoError(t, env.vectors.Add(ctx, vectorindex.Entry{
		RecordID:      record.ID,
		Title:         record.Title,
		Problem:       record.Problem,
		ErrorMessages: record.ErrorMessages,
	}))
	return record
}

func TestHybridSearchRanksExactMatchFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docker := env.save(t, &storage.Record{
		Title:         "Docker container OOM",
		Problem:       "docker container killed out of memory",
		Solution:      "raise the memory limit",
		ErrorMessages: []string{"OOMKilled"},
		Tags:          []string{"Docker"},
	})
	env.save(t, &storage.Record{
		Title:    "React hydration mismatch",
		Problem:  "react server rendering hydration mismatch warning",
		Solution: "gate browser-only content behind useEffect",
		Tags:     []string{"React"},
	})

	results, err := env.engine.Search(ctx, "docker container killed out of memory", 5, nil, ModeHybrid)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, docker.ID, results[0].ID)
	assert.Greater(t, results[0].Relevance, 0.0)
	assert.LessOrEqual(t, results[0].Relevance, 1.0)
}

func TestHybridFusionWeights(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// In the store but not in the vector index, so the semantic component
	// is exactly zero and relevance is the keyword share alone.
	record := &storage.Record{
		Title:    "Postgres pool exhausted",
		Problem:  "postgres connection pool exhausted under load",
		Solution: "tune max_connections",
	}
	require.NoError(t, env.store.SaveRecord(ctx, record))

	results, err := env.engine.Search(ctx, "postgres pool exhausted", 5, nil, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Zero(t, r.SemanticScore)
	assert.Equal(t, 1.0, r.KeywordScore, "only keyword hit normalizes to 1.0")
	assert.InDelta(t, (1-DefaultSemanticWeight)*r.KeywordScore, r.Relevance, 1e-9)
}

func TestKeywordModeRelevanceEqualsKeywordScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, &storage.Record{
		Title:    "Terraform lock",
		Problem:  "terraform state lock stuck after interrupted apply",
		Solution: "force-unlock with the lock ID",
	})

	results, err := env.engine.Search(ctx, "terraform state lock", 5, nil, ModeKeyword)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, results[0].KeywordScore, results[0].Relevance)
	assert.Zero(t, results[0].SemanticScore)
}

func TestSemanticModeRelevanceEqualsSemanticScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, &storage.Record{
		Title:    "Terraform lock",
		Problem:  "terraform state lock stuck after interrupted apply",
		Solution: "force-unlock with the lock ID",
	})

	results, err := env.engine.Search(ctx, "terraform state lock stuck after interrupted apply", 5, nil, ModeSemantic)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, results[0].SemanticScore, results[0].Relevance)
	assert.Zero(t, results[0].KeywordScore)
	assert.InDelta(t, 1.0, results[0].SemanticScore, 1e-4)
}

func TestUnknownModeFallsBackToHybrid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, &storage.Record{
		Title:    "Docker OOM",
		Problem:  "docker container killed out of memory",
		Solution: "raise the memory limit",
	})

	results, err := env.engine.Search(ctx, "docker container killed", 5, nil, "fuzzy")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Hybrid fills both components for a record found by both sides
	assert.Greater(t, results[0].SemanticScore, 0.0)
	assert.Greater(t, results[0].KeywordScore, 0.0)
}

func TestTagFilterKeepsOnlyTagged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docker := env.save(t, &storage.Record{
		Title:    "Docker networking",
		Problem:  "docker compose service cannot reach database container",
		Solution: "use the service name as hostname",
		Tags:     []string{"Docker"},
	})
	env.save(t, &storage.Record{
		Title:    "Postgres networking",
		Problem:  "database container refuses remote connections",
		Solution: "set listen_addresses",
		Tags:     []string{"PostgreSQL"},
	})

	results, err := env.engine.Search(ctx, "database container", 5, []string{"Docker"}, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docker.ID, results[0].ID)
}

func TestTagFilterMatchesAnyOf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, &storage.Record{
		Title:    "Docker networking",
		Problem:  "docker compose service cannot reach database container",
		Solution: "use the service name as hostname",
		Tags:     []string{"Docker"},
	})

	results, err := env.engine.Search(ctx, "database container", 5, []string{"Docker", "Kubernetes"}, ModeHybrid)
	require.NoError(t, err)
	assert.Len(t, results, 1, "record tagged with any requested tag survives the filter")
}

func TestResultLimitAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		env.save(t, &storage.Record{
			Title:    title,
			Problem:  "kafka consumer group rebalancing repeatedly " + title,
			Solution: "increase session timeout",
		})
	}

	results, err := env.engine.Search(ctx, "kafka consumer group rebalancing", 3, nil, ModeHybrid)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		if results[i-1].Relevance == results[i].Relevance {
			assert.Less(t, results[i-1].ID, results[i].ID, "equal relevance breaks ties by ID")
		} else {
			assert.Greater(t, results[i-1].Relevance, results[i].Relevance)
		}
	}
}

func TestProblemTruncation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	long := strings.Repeat("deployment fails with image pull backoff ", 10)
	require.Greater(t, len(long), summaryProblemLen)

	env.save(t, &storage.Record{
		Title:    "Image pull backoff",
		Problem:  long,
		Solution: "fix the registry credentials",
	})

	results, err := env.engine.Search(ctx, "image pull backoff", 5, nil, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, strings.HasSuffix(results[0].Problem, "..."))
	assert.Len(t, []rune(results[0].Problem), summaryProblemLen+3)
}

func TestScoresRoundedToFourDecimals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, &storage.Record{
		Title:    "Docker OOM",
		Problem:  "docker container killed out of memory unexpectedly",
		Solution: "raise the memory limit",
	})

	results, err := env.engine.Search(ctx, "container memory", 5, nil, ModeHybrid)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		for _, score := range []float64{r.Relevance, r.SemanticScore, r.KeywordScore} {
			scaled := score * 10000
			assert.InDelta(t, math.Round(scaled), scaled, 1e-6)
		}
	}
}

func TestDriftedRecordsDroppedSilently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record := env.save(t, &storage.Record{
		Title:    "Ghost record",
		Problem:  "redis replication lag spikes during failover",
		Solution: "tune repl-backlog-size",
	})

	// Delete from the canonical store only; the vector lingers.
	removed, err := env.store.DeleteRecord(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, removed)

	results, err := env.engine.Search(ctx, "redis replication lag spikes during failover", 5, nil, ModeSemantic)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridDegradesWhenSemanticSideFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record := env.save(t, &storage.Record{
		Title:    "Docker OOM",
		Problem:  "docker container killed out of memory",
		Solution: "raise the memory limit",
	})

	// Force semantic failures by closing the vector database.
	require.NoError(t, env.vectors.Close())

	results, err := env.engine.Search(ctx, "docker container killed", 5, nil, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, record.ID, results[0].ID)
	assert.Zero(t, results[0].SemanticScore)
}

func TestEmptyCorpusReturnsNoResults(t *testing.T) {
	env := newTestEnv(t)

	results, err := env.engine.Search(context.Background(), "anything at all", 5, nil, ModeHybrid)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewEngineClampsInvalidWeight(t *testing.T) {
	env := newTestEnv(t)

	e := NewEngine(env.store, env.vectors, 1.5)
	assert.Equal(t, DefaultSemanticWeight, e.semanticWeight)
	assert.InDelta(t, 1-DefaultSemanticWeight, e.keywordWeight, 1e-9)
}
