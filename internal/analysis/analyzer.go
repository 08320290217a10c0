// Package analysis drives full-game evaluation: it walks a game ply by
// ply, resolves evaluations through the cache chain, classifies move
// quality and mistakes, and aggregates per-color accuracy.
package analysis

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/corentings/chess/v2"
	"golang.org/x/sync/semaphore"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/classify"
	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/datastore"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/evalcache"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/observability"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// Scores are mapped onto a single centipawn axis; mates sit far above any
// positional score, and a single ply's loss is capped so one disaster
// cannot dominate the averages beyond what the accuracy formula already
// encodes.
const (
	mateScoreCP = 100_000
	maxPlyLoss  = 1_000
)

// EngineSession is one live engine process owned by a single game
// analysis.
type EngineSession interface {
	evalcache.Evaluator
	Close() error
}

// Service runs game analyses over shared cache tiers, giving every game
// its own engine session.
type Service struct {
	settings *conf.Settings
	chain    *evalcache.Chain
	store    datastore.Interface
	metrics  *observability.Metrics
	logger   *slog.Logger

	// Replaced in tests to avoid spawning real engine processes.
	newSession func() (EngineSession, error)
}

// NewService wires an analysis service. store may be nil.
func NewService(settings *conf.Settings, chain *evalcache.Chain, store datastore.Interface, metrics *observability.Metrics) *Service {
	s := &Service{
		settings: settings,
		chain:    chain,
		store:    store,
		metrics:  metrics,
		logger:   logging.ForService("analysis"),
	}
	s.newSession = func() (EngineSession, error) {
		return uci.NewEngine(settings.Engine, s.logger, metrics)
	}
	return s
}

// AnalyzeGame evaluates every ply of one game sequentially. Malformed
// input fails fast; evaluation failures mark the result incomplete while
// keeping the plies that did resolve.
func (s *Service) AnalyzeGame(ctx context.Context, req GameRequest) (*GameResult, error) {
	game, moves, err := buildGame(req)
	if err != nil {
		return nil, err
	}
	depth := req.Depth
	if depth <= 0 {
		depth = s.settings.Analysis.GameDepth
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("engine session close failed", "error", cerr)
		}
	}()
	chain := s.chain.WithEvaluator(session)

	result := &GameResult{Depth: depth}
	tallies := map[chess.Color]*tally{
		chess.White: newTally(),
		chess.Black: newTally(),
	}

	// Evaluation of the position the next move is played from, side to
	// move's perspective. nil after a failed lookup.
	var current *evalcache.Result

	for i, moveStr := range moves {
		pos := game.Position()
		mover := pos.Turn()
		fenBefore := pos.String()
		moveNumber := chessmove.FullMoveNumber(pos)

		if current == nil {
			current = s.resolve(ctx, chain, fenBefore, depth, result)
		}

		mv, err := chessmove.DecodeMove(pos, moveStr)
		if err != nil {
			return nil, err
		}
		san := chessmove.EncodeSAN(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return nil, errors.Newf("move %q rejected: %w", moveStr, err).
				Category(errors.CategoryValidation).
				Context("ply", i+1).
				Component("analysis").
				Build()
		}
		afterPos := game.Position()

		// After-move evaluation from the mover's point of view. Terminal
		// positions need no engine: the game is decided on the board.
		var (
			afterScore int
			afterRes   *evalcache.Result
			terminal   bool
			resolved   = true
		)
		switch afterPos.Status() {
		case chess.Checkmate:
			terminal = true
			afterScore = mateScoreCP
		case chess.Stalemate:
			terminal = true
			afterScore = 0
		default:
			afterRes = s.resolve(ctx, chain, afterPos.String(), depth, result)
			if afterRes == nil {
				resolved = false
			} else {
				afterScore = -scoreForSideToMove(afterRes.Eval)
			}
		}

		if current == nil || !resolved {
			result.SkippedPlies++
			current = afterRes
			continue
		}

		beforeScore := scoreForSideToMove(current.Eval)
		cpLoss := beforeScore - afterScore
		if cpLoss < 0 {
			cpLoss = 0
		}
		if cpLoss > maxPlyLoss {
			cpLoss = maxPlyLoss
		}
		missedMate := current.Eval.HasMate && current.Eval.MateIn > 0 &&
			afterScore < mateScoreCP-maxPlyLoss
		quality := uci.Classify(cpLoss, missedMate)

		record := MoveEvaluation{
			Ply:        i + 1,
			MoveNumber: moveNumber,
			Player:     mover,
			MoveSAN:    san,
			MoveUCI:    mv.String(),
			FENBefore:  fenBefore,
			Quality:    quality,
			CPLoss:     cpLoss,
			EvalBefore: beforeScore,
			EvalAfter:  afterScore,
			HasMate:    current.Eval.HasMate,
			MateIn:     current.Eval.MateIn,
			BestMove:   current.Eval.BestMove,
			BestLine:   current.Eval.PV,
			Terminal:   terminal,
		}
		if afterRes != nil {
			record.Source = afterRes.Source
		}
		if mover == req.Perspective && quality.WorseThan(uci.QualityGood) {
			record.Mistake = s.classifyMistake(pos, afterPos, mv, current.Eval,
				beforeScore, afterScore, record.MoveNumber, mover)
		}
		result.Moves = append(result.Moves, record)
		tallies[mover].add(cpLoss, quality)

		current = afterRes
	}

	result.White = tallies[chess.White].summary()
	result.Black = tallies[chess.Black].summary()

	s.persist(ctx, req, result)
	return result, nil
}

// resolve fetches one evaluation through the chain, translating total
// fallback failure into the incomplete flag rather than an abort.
func (s *Service) resolve(ctx context.Context, chain *evalcache.Chain, fen string, depth int, result *GameResult) *evalcache.Result {
	res, err := chain.GetEvaluation(ctx, fen, depth, s.settings.Engine.MultiPV)
	if err != nil {
		s.logger.Warn("ply evaluation unavailable", "error", err, "depth", depth)
		result.Incomplete = true
		return nil
	}
	return res
}

// classifyMistake runs the rule table for one bad ply of the perspective
// player.
func (s *Service) classifyMistake(before, after *chess.Position, mv *chess.Move, eval *uci.Evaluation,
	beforeScore, afterScore, moveNumber int, mover chess.Color) *classify.Mistake {
	var best *chess.Move
	if eval.BestMove != "" {
		if decoded, err := chessmove.DecodeMove(before, eval.BestMove); err == nil {
			best = decoded
		}
	}
	m := classify.Classify(classify.Input{
		Before:     before,
		After:      after,
		Move:       mv,
		BestMove:   best,
		EvalBefore: chessmove.Pawns(beforeScore),
		EvalAfter:  chessmove.Pawns(afterScore),
		MoveNumber: moveNumber,
		Mover:      mover,
	})
	return &m
}

// persist writes the game summary; storage failures are logged, the
// analysis itself already succeeded.
func (s *Service) persist(ctx context.Context, req GameRequest, result *GameResult) {
	if s.store == nil {
		return
	}
	summary := result.Summary(req.Perspective)
	played := make([]string, 0, len(result.Moves))
	for i := range result.Moves {
		played = append(played, result.Moves[i].MoveSAN)
	}
	record := &datastore.GameAnalysis{
		Perspective:  colorName(req.Perspective),
		Moves:        strings.Join(played, " "),
		MoveCount:    len(result.Moves),
		Depth:        result.Depth,
		Accuracy:     summary.Accuracy,
		AvgCPLoss:    summary.AvgCPLoss,
		Incomplete:   result.Incomplete,
		Best:         summary.Counts[uci.QualityBest],
		Excellent:    summary.Counts[uci.QualityExcellent],
		Good:         summary.Counts[uci.QualityGood],
		Inaccuracies: summary.Counts[uci.QualityInaccuracy],
		Mistakes:     summary.Counts[uci.QualityMistake],
		Blunders:     summary.Counts[uci.QualityBlunder],
	}
	if err := s.store.SaveGameAnalysis(ctx, record); err != nil {
		s.logger.Warn("failed to persist game analysis", "error", err)
	}
}

// AnalyzeGames runs independent games in parallel, each with its own
// engine session, bounded by the configured concurrency. Results keep
// request order; a failed game leaves a nil slot and contributes to the
// joined error.
func (s *Service) AnalyzeGames(ctx context.Context, reqs []GameRequest) ([]*GameResult, error) {
	limit := int64(s.settings.Analysis.MaxParallelGame)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	results := make([]*GameResult, len(reqs))
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Mark every request that never ran, not just the one the
			// acquire failed on.
			for j := i; j < len(reqs); j++ {
				errs[j] = err
			}
			break
		}
		wg.Add(1)
		go func(i int, req GameRequest) {
			defer wg.Done()
			defer sem.Release(1)
			results[i], errs[i] = s.AnalyzeGame(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

// EvaluatePosition resolves a single position through the cache chain
// with a dedicated engine session as the backstop.
func (s *Service) EvaluatePosition(ctx context.Context, fen string, depth int) (*evalcache.Result, error) {
	if _, err := chessmove.ParseFEN(fen); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = s.settings.Analysis.QuickDepth
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("engine session close failed", "error", cerr)
		}
	}()
	return s.chain.WithEvaluator(session).GetEvaluation(ctx, fen, depth, s.settings.Engine.MultiPV)
}

// ExplainMove answers why the engine's choice beats the played move in
// the given position.
func (s *Service) ExplainMove(ctx context.Context, fen, moveStr string, depth int) (*MoveExplanation, error) {
	pos, err := chessmove.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	played, err := chessmove.DecodeMove(pos, moveStr)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = s.settings.Analysis.CriticalDepth
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("engine session close failed", "error", cerr)
		}
	}()
	chain := s.chain.WithEvaluator(session)

	before, err := chain.GetEvaluation(ctx, fen, depth, s.settings.Engine.MultiPV)
	if err != nil {
		return nil, err
	}
	explanation := &MoveExplanation{
		PlayedSAN: chessmove.EncodeSAN(pos, played),
	}
	if before.Eval.BestMove == "" {
		explanation.AlreadyBest = true
		return explanation, nil
	}
	best, err := chessmove.DecodeMove(pos, before.Eval.BestMove)
	if err != nil {
		return nil, err
	}
	explanation.BestSAN = chessmove.EncodeSAN(pos, best)
	if best.String() == played.String() {
		explanation.AlreadyBest = true
		return explanation, nil
	}

	afterPos := pos.Update(played)
	after, err := chain.GetEvaluation(ctx, afterPos.String(), depth, s.settings.Engine.MultiPV)
	if err != nil {
		return nil, err
	}
	cpLoss := scoreForSideToMove(before.Eval) + scoreForSideToMove(after.Eval)
	if cpLoss < 0 {
		cpLoss = 0
	}
	if cpLoss > maxPlyLoss {
		cpLoss = maxPlyLoss
	}
	explanation.CPLoss = cpLoss
	explanation.Comparison = classify.CompareMoves(pos, played, best, pos.Turn())
	return explanation, nil
}

// buildGame turns a request into a game plus the move list to replay.
func buildGame(req GameRequest) (*chess.Game, []string, error) {
	if req.PGN != "" {
		parsed, err := chessmove.GameFromPGN(req.PGN)
		if err != nil {
			return nil, nil, err
		}
		moves := make([]string, 0, len(parsed.Moves()))
		for _, mv := range parsed.Moves() {
			moves = append(moves, mv.String())
		}
		game := chess.NewGame()
		return game, moves, nil
	}

	if req.StartFEN == "" {
		return chess.NewGame(), req.Moves, nil
	}
	game, err := chessmove.GameFromFEN(req.StartFEN)
	if err != nil {
		return nil, nil, err
	}
	return game, req.Moves, nil
}

// scoreForSideToMove collapses an evaluation onto one centipawn axis from
// the side to move's perspective, projecting mates beyond any positional
// score.
func scoreForSideToMove(eval *uci.Evaluation) int {
	if eval == nil {
		return 0
	}
	if eval.HasMate {
		if eval.MateIn >= 0 {
			return mateScoreCP - eval.MateIn
		}
		return -mateScoreCP - eval.MateIn
	}
	return eval.ScoreCP
}

// tally accumulates one color's per-ply results.
type tally struct {
	losses []int
	counts map[uci.Quality]int
}

func newTally() *tally {
	return &tally{counts: make(map[uci.Quality]int)}
}

func (t *tally) add(cpLoss int, quality uci.Quality) {
	t.losses = append(t.losses, cpLoss)
	t.counts[quality]++
}

// summary computes accuracy as 100 x mean(max(0, 1 - min(loss,500)/200)).
// A side with no moves scores a perfect 100.
func (t *tally) summary() ColorSummary {
	s := ColorSummary{
		Moves:    len(t.losses),
		Accuracy: 100,
		Counts:   t.counts,
	}
	if len(t.losses) == 0 {
		return s
	}
	sum := 0.0
	total := 0
	for _, loss := range t.losses {
		capped := math.Min(float64(loss), 500)
		sum += math.Max(0, 1-capped/200)
		total += loss
	}
	s.Accuracy = 100 * sum / float64(len(t.losses))
	s.AvgCPLoss = float64(total) / float64(len(t.losses))
	return s
}

func colorName(c chess.Color) string {
	if c == chess.Black {
		return "black"
	}
	return "white"
}
