package evalcache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

type fakeStore struct {
	entries map[string]*uci.Evaluation
	getErr  error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*uci.Evaluation)}
}

func (s *fakeStore) GetEvaluation(_ context.Context, key string) (*uci.Evaluation, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	eval, ok := s.entries[key]
	return eval, ok, nil
}

func (s *fakeStore) SaveEvaluation(_ context.Context, key string, eval *uci.Evaluation) error {
	s.saves++
	s.entries[key] = eval
	return nil
}

type fakeCloud struct {
	eval  *uci.Evaluation
	found bool
	err   error
	calls int
}

func (c *fakeCloud) Lookup(context.Context, string, int) (*uci.Evaluation, bool, error) {
	c.calls++
	return c.eval, c.found, c.err
}

type fakeEngine struct {
	depth int
	err   error
	calls int
}

func (e *fakeEngine) Evaluate(_ context.Context, _ string, depth int) (*uci.Evaluation, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	d := e.depth
	if d == 0 {
		d = depth
	}
	return &uci.Evaluation{ScoreCP: 42, BestMove: "e2e4", Depth: d}, nil
}

func TestChainFallsThroughToEngine(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	cloud := &fakeCloud{}
	engine := &fakeEngine{}
	chain := NewChain(100, 10, store, cloud, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Equal(t, 42, res.Eval.ScoreCP)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, cloud.calls)

	// The result was written back to both caching tiers.
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, chain.MemoryLen())

	// Second request is a memory hit; no tier below is consulted.
	res, err = chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, cloud.calls)
}

func TestChainPersistentHit(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	key := chessmove.NormalizeFEN(chessmove.StartingFEN)
	store.entries[key] = &uci.Evaluation{ScoreCP: 20, Depth: 22}
	engine := &fakeEngine{}
	chain := NewChain(100, 10, store, nil, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceDB, res.Source)
	assert.Zero(t, engine.calls)

	// Promoted to the memory tier.
	res, err = chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
}

func TestChainCloudHitWritesBack(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	cloud := &fakeCloud{eval: &uci.Evaluation{ScoreCP: 35, Depth: 40}, found: true}
	engine := &fakeEngine{}
	chain := NewChain(100, 10, store, cloud, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceCloud, res.Source)
	assert.Zero(t, engine.calls)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, chain.MemoryLen())
}

// A cached evaluation shallower than requested is not a hit: the chain
// continues and the stale entry is overwritten by the deeper result.
func TestChainDepthValidity(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	key := chessmove.NormalizeFEN(chessmove.StartingFEN)
	store.entries[key] = &uci.Evaluation{ScoreCP: 20, Depth: 12}
	engine := &fakeEngine{}
	chain := NewChain(100, 10, store, nil, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Equal(t, 18, res.Eval.Depth)
	assert.Equal(t, 1, engine.calls)

	// The stale persistent entry was replaced.
	assert.Equal(t, 18, store.entries[key].Depth)

	// A shallower follow-up request is satisfied by the upgraded entry.
	res, err = chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 12, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	assert.Equal(t, 1, engine.calls)
}

func TestChainNormalizesKeys(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	chain := NewChain(100, 10, nil, nil, engine, nil)

	_, err := chain.GetEvaluation(context.Background(),
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 18, 1)
	require.NoError(t, err)

	// Same position, different move counters: still a memory hit.
	res, err := chain.GetEvaluation(context.Background(),
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 7 42", 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	assert.Equal(t, 1, engine.calls)
}

func TestChainBrokenTiersFallThrough(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.getErr = errors.NewStd("disk on fire")
	cloud := &fakeCloud{err: errors.NewStd("network down")}
	engine := &fakeEngine{}
	chain := NewChain(100, 10, store, cloud, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
}

func TestChainTotalFailure(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{err: errors.NewStd("engine gone")}
	chain := NewChain(100, 10, nil, nil, engine, nil)

	res, err := chain.GetEvaluation(context.Background(), chessmove.StartingFEN, 18, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEvaluationUnavailable))
	assert.Equal(t, SourceError, res.Source)
	assert.Nil(t, res.Eval)
}

func TestMemoryTierTrimsOldestBlock(t *testing.T) {
	t.Parallel()
	tier := newMemoryTier(4, 2)
	for i := 0; i < 4; i++ {
		tier.set(fmt.Sprintf("key-%d", i), &uci.Evaluation{Depth: i})
	}
	require.Equal(t, 4, tier.len())

	// The fifth insert evicts the two oldest entries.
	tier.set("key-4", &uci.Evaluation{Depth: 4})
	assert.Equal(t, 3, tier.len())
	_, ok := tier.get("key-0")
	assert.False(t, ok)
	_, ok = tier.get("key-1")
	assert.False(t, ok)
	_, ok = tier.get("key-4")
	assert.True(t, ok)

	// Overwriting keeps the queue position, it does not refresh it.
	tier.set("key-2", &uci.Evaluation{Depth: 99})
	assert.Equal(t, 3, tier.len())
}
