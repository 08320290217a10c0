package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

const testKey = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq"

func TestEvaluationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, found, err := store.GetEvaluation(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, found, "empty store must miss without error")

	eval := &uci.Evaluation{
		ScoreCP:  34,
		BestMove: "e2e4",
		PV:       []string{"e2e4", "e7e5", "g1f3"},
		Depth:    18,
	}
	require.NoError(t, store.SaveEvaluation(ctx, testKey, eval))

	got, found, err := store.GetEvaluation(ctx, testKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 34, got.ScoreCP)
	assert.Equal(t, "e2e4", got.BestMove)
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3"}, got.PV)
	assert.Equal(t, 18, got.Depth)
}

// Saving the same key again must update in place, not grow the table.
func TestSaveEvaluationUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEvaluation(ctx, testKey, &uci.Evaluation{ScoreCP: 20, Depth: 12}))
	require.NoError(t, store.SaveEvaluation(ctx, testKey, &uci.Evaluation{ScoreCP: 31, Depth: 22}))

	got, found, err := store.GetEvaluation(ctx, testKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 22, got.Depth)
	assert.Equal(t, 31, got.ScoreCP)

	n, err := store.EvaluationCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMateEvaluationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEvaluation(ctx, testKey, &uci.Evaluation{
		HasMate: true, MateIn: 3, BestMove: "h5f7", Depth: 20,
	}))
	got, found, err := store.GetEvaluation(ctx, testKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.HasMate)
	assert.Equal(t, 3, got.MateIn)
}

func TestPruneEvaluations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEvaluation(ctx, testKey, &uci.Evaluation{Depth: 18}))

	removed, err := store.PruneEvaluations(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed, "fresh entries survive pruning")

	removed, err = store.PruneEvaluations(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestGameAnalysisHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &GameAnalysis{Perspective: "white", MoveCount: 24, Accuracy: 91.5, Depth: 18}
	require.NoError(t, store.SaveGameAnalysis(ctx, first))
	second := &GameAnalysis{Perspective: "black", MoveCount: 40, Accuracy: 77.2, Depth: 18, Incomplete: true}
	require.NoError(t, store.SaveGameAnalysis(ctx, second))

	got, err := store.GetGameAnalysis(ctx, first.ID)
	require.NoError(t, err)
	assert.InDelta(t, 91.5, got.Accuracy, 0.001)

	recent, err := store.RecentGameAnalyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	_, err = store.GetGameAnalysis(ctx, 9999)
	require.Error(t, err)
}
