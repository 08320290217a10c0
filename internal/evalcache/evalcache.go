// Package evalcache resolves position evaluations through a tiered chain:
// bounded in-process memory, persistent store, cloud lookup, local
// engine. A miss at any tier is an expected branch, never an error; only
// exhausting the whole chain fails.
package evalcache

import (
	"context"
	"log/slog"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/observability"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// Source tags where an evaluation came from.
type Source string

const (
	SourceMemory Source = "memory_cache"
	SourceDB     Source = "db_cache"
	SourceCloud  Source = "cloud"
	SourceLocal  Source = "local_engine"
	SourceError  Source = "error"
)

// ErrEvaluationUnavailable marks total fallback failure: every tier
// missed or failed. Checked with errors.Is.
var ErrEvaluationUnavailable = errors.NewStd("evaluation unavailable from all sources")

// Result is an evaluation plus its provenance.
type Result struct {
	Eval   *uci.Evaluation
	Source Source
}

// PersistentStore is the durable FEN-keyed tier, typically backed by
// SQLite. Get returns found=false on a miss.
type PersistentStore interface {
	GetEvaluation(ctx context.Context, key string) (eval *uci.Evaluation, found bool, err error)
	SaveEvaluation(ctx context.Context, key string, eval *uci.Evaluation) error
}

// CloudLookup is the pre-computed evaluation service tier.
type CloudLookup interface {
	Lookup(ctx context.Context, fen string, multiPV int) (eval *uci.Evaluation, found bool, err error)
}

// Evaluator is the local engine tier, the chain's backstop.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, depth int) (*uci.Evaluation, error)
}

// Chain resolves evaluations tier by tier. Store and cloud may be nil;
// the engine must not be.
type Chain struct {
	memory  *memoryTier
	store   PersistentStore
	cloud   CloudLookup
	engine  Evaluator
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewChain builds a resolution chain with a bounded memory tier.
func NewChain(memoryEntries, trimBlock int, store PersistentStore, cloud CloudLookup, engine Evaluator, metrics *observability.Metrics) *Chain {
	return &Chain{
		memory:  newMemoryTier(memoryEntries, trimBlock),
		store:   store,
		cloud:   cloud,
		engine:  engine,
		metrics: metrics,
		logger:  logging.ForService("evalcache"),
	}
}

// WithEvaluator returns a chain using engine as the backstop tier while
// sharing the memory, persistent and cloud tiers with the receiver. Used
// to give each game analysis its own engine session over the common
// caches.
func (c *Chain) WithEvaluator(engine Evaluator) *Chain {
	clone := *c
	clone.engine = engine
	return &clone
}

// GetEvaluation resolves fen to at least minDepth. Entries cached at a
// shallower depth than requested do not count as hits; the chain
// continues and the stale entry is overwritten on success. Every
// successful result is written back to the memory and persistent tiers.
func (c *Chain) GetEvaluation(ctx context.Context, fen string, minDepth, multiPV int) (*Result, error) {
	key := chessmove.NormalizeFEN(fen)

	if eval, ok := c.memory.get(key); ok && eval.Depth >= minDepth {
		c.metrics.RecordEvaluation(string(SourceMemory))
		return &Result{Eval: eval, Source: SourceMemory}, nil
	}
	c.metrics.RecordCacheMiss(string(SourceMemory))

	if c.store != nil {
		eval, found, err := c.store.GetEvaluation(ctx, key)
		switch {
		case err != nil:
			// A broken store is a miss, the chain carries on.
			c.logger.Warn("persistent cache lookup failed", "error", err)
		case found && eval.Depth >= minDepth:
			c.memory.set(key, eval)
			c.metrics.RecordEvaluation(string(SourceDB))
			return &Result{Eval: eval, Source: SourceDB}, nil
		}
	}
	c.metrics.RecordCacheMiss(string(SourceDB))

	if c.cloud != nil {
		eval, found, err := c.cloud.Lookup(ctx, fen, multiPV)
		switch {
		case err != nil:
			c.logger.Debug("cloud lookup failed, falling through", "error", err)
		case found && eval.Depth >= minDepth:
			c.writeBack(ctx, key, eval)
			c.metrics.RecordEvaluation(string(SourceCloud))
			return &Result{Eval: eval, Source: SourceCloud}, nil
		case found:
			c.logger.Debug("cloud evaluation too shallow",
				"depth", eval.Depth, "min_depth", minDepth)
		}
	}
	c.metrics.RecordCacheMiss(string(SourceCloud))

	if c.engine == nil {
		c.metrics.RecordEvaluation(string(SourceError))
		return &Result{Source: SourceError}, errors.Newf("%w: no engine configured", ErrEvaluationUnavailable).
			Category(errors.CategoryEvalCache).
			Component("evalcache").
			Build()
	}
	eval, err := c.engine.Evaluate(ctx, fen, minDepth)
	if err != nil {
		c.metrics.RecordEvaluation(string(SourceError))
		return &Result{Source: SourceError}, errors.Newf("%w: %w", ErrEvaluationUnavailable, err).
			Category(errors.CategoryEvalCache).
			Context("min_depth", minDepth).
			FENContext(fen).
			Component("evalcache").
			Build()
	}
	c.writeBack(ctx, key, eval)
	c.metrics.RecordEvaluation(string(SourceLocal))
	return &Result{Eval: eval, Source: SourceLocal}, nil
}

// writeBack stores a fresh evaluation in the memory and persistent tiers.
// Persistence failures are logged, not surfaced; the evaluation itself is
// already in hand.
func (c *Chain) writeBack(ctx context.Context, key string, eval *uci.Evaluation) {
	c.memory.set(key, eval)
	if c.store == nil {
		return
	}
	if err := c.store.SaveEvaluation(ctx, key, eval); err != nil {
		c.logger.Warn("persistent cache write failed", "error", err)
	}
}

// MemoryLen reports the number of entries in the memory tier.
func (c *Chain) MemoryLen() int {
	return c.memory.len()
}
