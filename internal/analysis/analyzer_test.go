package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/classify"
	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/evalcache"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// fakeSession serves canned evaluations keyed by normalized FEN. Positions
// without an entry get a flat default so games can be replayed end to end.
type fakeSession struct {
	evals   map[string]*uci.Evaluation
	failing map[string]bool

	mu     sync.Mutex
	calls  int
	closed bool
}

func (f *fakeSession) Evaluate(_ context.Context, fen string, depth int) (*uci.Evaluation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	key := chessmove.NormalizeFEN(fen)
	if f.failing[key] {
		return nil, errors.NewStd("engine crashed")
	}
	if eval, ok := f.evals[key]; ok {
		return eval, nil
	}
	return &uci.Evaluation{ScoreCP: 20, Depth: depth, BestMove: ""}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestService(session *fakeSession) *Service {
	settings := &conf.Settings{}
	settings.Analysis.GameDepth = 12
	settings.Analysis.CriticalDepth = 14
	settings.Analysis.MaxParallelGame = 2
	settings.Engine.MultiPV = 1

	s := NewService(settings, evalcache.NewChain(64, 8, nil, nil, nil, nil), nil, nil)
	s.newSession = func() (EngineSession, error) { return session, nil }
	return s
}

func key(fen string) string { return chessmove.NormalizeFEN(fen) }

func TestAnalyzeGameMatingMoveIsBest(t *testing.T) {
	// White to move with mate in one on the board.
	const fen = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4"
	session := &fakeSession{evals: map[string]*uci.Evaluation{
		key(fen): {HasMate: true, MateIn: 1, BestMove: "h5f7", Depth: 12},
	}}
	svc := newTestService(session)

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		StartFEN:    fen,
		Moves:       []string{"Qxf7#"},
		Perspective: chess.White,
	})
	require.NoError(t, err)
	require.Len(t, result.Moves, 1)

	mv := result.Moves[0]
	assert.True(t, mv.Terminal)
	assert.Equal(t, uci.QualityBest, mv.Quality)
	assert.Equal(t, 0, mv.CPLoss)
	assert.Equal(t, "Qxf7#", mv.MoveSAN)
	assert.Equal(t, "h5f7", mv.MoveUCI)
	assert.True(t, mv.HasMate)
	assert.False(t, result.Incomplete)
	assert.InDelta(t, 100, result.White.Accuracy, 0.001)
	assert.True(t, session.closed)
}

func TestAnalyzeGamePerColorAggregates(t *testing.T) {
	session := &fakeSession{}
	svc := newTestService(session)

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		Moves:       []string{"e4", "e5", "Nf3", "Nc6"},
		Perspective: chess.White,
	})
	require.NoError(t, err)
	require.Len(t, result.Moves, 4)

	assert.Equal(t, 2, result.White.Moves)
	assert.Equal(t, 2, result.Black.Moves)
	assert.GreaterOrEqual(t, result.White.Accuracy, 0.0)
	assert.LessOrEqual(t, result.White.Accuracy, 100.0)
	assert.Equal(t, chess.White, result.Moves[0].Player)
	assert.Equal(t, chess.Black, result.Moves[1].Player)
	assert.Equal(t, 1, result.Moves[0].MoveNumber)
	assert.Equal(t, 1, result.Moves[1].MoveNumber)
	assert.Equal(t, 2, result.Moves[2].MoveNumber)
}

func TestAnalyzeGameEmptyGameScoresPerfect(t *testing.T) {
	svc := newTestService(&fakeSession{})

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{Perspective: chess.White})
	require.NoError(t, err)
	assert.Empty(t, result.Moves)
	assert.InDelta(t, 100, result.White.Accuracy, 0.001)
	assert.InDelta(t, 100, result.Black.Accuracy, 0.001)
}

func TestAnalyzeGameEngineFailureMarksIncomplete(t *testing.T) {
	// The position after 1.e4 never evaluates. The ply into it and the ply
	// out of it are skipped; the rest of the game still resolves.
	afterE4 := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	session := &fakeSession{failing: map[string]bool{key(afterE4): true}}
	svc := newTestService(session)

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		Moves:       []string{"e4", "e5", "Nf3"},
		Perspective: chess.White,
	})
	require.NoError(t, err)

	assert.True(t, result.Incomplete)
	assert.Equal(t, 2, result.SkippedPlies)
	require.Len(t, result.Moves, 1)
	assert.Equal(t, "Nf3", result.Moves[0].MoveSAN)
	assert.Equal(t, 3, result.Moves[0].Ply)
}

func TestAnalyzeGameRejectsIllegalMove(t *testing.T) {
	svc := newTestService(&fakeSession{})

	_, err := svc.AnalyzeGame(context.Background(), GameRequest{
		Moves:       []string{"e4", "Ke4"},
		Perspective: chess.White,
	})
	assert.Error(t, err)
}

func TestAnalyzeGameClassifiesPerspectiveBlunders(t *testing.T) {
	// White walks the queen onto a square defended by a pawn.
	before := "4k3/8/1p6/8/Q7/8/8/4K3 w - - 0 1"
	after := "4k3/8/1p6/Q7/8/8/8/4K3 b - - 1 1"
	session := &fakeSession{evals: map[string]*uci.Evaluation{
		key(before): {ScoreCP: 200, Depth: 12, BestMove: "a4b4"},
		key(after):  {ScoreCP: 700, Depth: 12}, // black to move, black winning
	}}

	svc := newTestService(session)
	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		StartFEN:    before,
		Moves:       []string{"a4a5"},
		Perspective: chess.White,
	})
	require.NoError(t, err)
	require.Len(t, result.Moves, 1)

	mv := result.Moves[0]
	assert.Equal(t, uci.QualityBlunder, mv.Quality)
	assert.Equal(t, 900, mv.CPLoss)
	require.NotNil(t, mv.Mistake)
	assert.Equal(t, classify.MistakeHangingPiece, mv.Mistake.Type)
	require.NotNil(t, mv.Mistake.HangingPiece)
	assert.Equal(t, "a5", mv.Mistake.HangingPiece.Square.String())

	// The same blunder goes unclassified when analyzing for the opponent.
	session2 := &fakeSession{evals: session.evals}
	svc2 := newTestService(session2)
	result2, err := svc2.AnalyzeGame(context.Background(), GameRequest{
		StartFEN:    before,
		Moves:       []string{"a4a5"},
		Perspective: chess.Black,
	})
	require.NoError(t, err)
	require.Len(t, result2.Moves, 1)
	assert.Nil(t, result2.Moves[0].Mistake)
}

func TestAnalyzeGameKeepsMoveNumbersFromStartFEN(t *testing.T) {
	// A game rooted mid-game carries the FEN's fullmove counter, with
	// Black to move first.
	svc := newTestService(&fakeSession{})

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		StartFEN:    "4k3/8/8/8/8/8/PP6/4K3 b - - 0 40",
		Moves:       []string{"Ke7", "Kd2"},
		Perspective: chess.White,
	})
	require.NoError(t, err)
	require.Len(t, result.Moves, 2)

	assert.Equal(t, chess.Black, result.Moves[0].Player)
	assert.Equal(t, 40, result.Moves[0].MoveNumber)
	assert.Equal(t, chess.White, result.Moves[1].Player)
	assert.Equal(t, 41, result.Moves[1].MoveNumber)
}

func TestAnalyzeGameLateGameBlunderFromStartFEN(t *testing.T) {
	// Analyzed from a move-40 position, a big quiet drop must classify as
	// a time-pressure blunder; the old ply-based counter restarted at 1
	// and never saw the late game.
	before := "4k3/8/8/8/8/8/PP6/4K3 w - - 0 40"
	after := "4k3/8/8/8/8/8/PP1K4/8 b - - 1 40"
	session := &fakeSession{evals: map[string]*uci.Evaluation{
		key(before): {ScoreCP: 0, Depth: 12},
		key(after):  {ScoreCP: 180, Depth: 12}, // black to move, black better
	}}
	svc := newTestService(session)

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		StartFEN:    before,
		Moves:       []string{"Kd2"},
		Perspective: chess.White,
	})
	require.NoError(t, err)
	require.Len(t, result.Moves, 1)

	mv := result.Moves[0]
	assert.Equal(t, 40, mv.MoveNumber)
	require.NotNil(t, mv.Mistake)
	assert.Equal(t, classify.MistakeTimePressure, mv.Mistake.Type)
	assert.True(t, mv.Mistake.Context.IsLateGame)
}

func TestAnalyzeGameFromPGN(t *testing.T) {
	svc := newTestService(&fakeSession{})

	result, err := svc.AnalyzeGame(context.Background(), GameRequest{
		PGN:         "1. e4 e5 2. Nf3 Nc6 *",
		Perspective: chess.White,
	})
	require.NoError(t, err)
	assert.Len(t, result.Moves, 4)
	assert.Equal(t, "e4", result.Moves[0].MoveSAN)
}

func TestAnalyzeGamesRunsAllRequests(t *testing.T) {
	svc := newTestService(&fakeSession{})
	// Every game gets a fresh session in production; the shared fake is
	// safe because it has no per-game state beyond counters.

	reqs := []GameRequest{
		{Moves: []string{"e4", "e5"}, Perspective: chess.White},
		{Moves: []string{"d4", "d5"}, Perspective: chess.Black},
		{Moves: []string{"zz9"}, Perspective: chess.White}, // malformed
	}
	results, err := svc.AnalyzeGames(context.Background(), reqs)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.NotNil(t, results[1])
	assert.Nil(t, results[2])
	assert.Error(t, err)
}

func TestAnalyzeGamesCancelledContextErrorsEverySlot(t *testing.T) {
	svc := newTestService(&fakeSession{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reqs := []GameRequest{
		{Moves: []string{"e4"}, Perspective: chess.White},
		{Moves: []string{"d4"}, Perspective: chess.White},
		{Moves: []string{"c4"}, Perspective: chess.White},
	}
	results, err := svc.AnalyzeGames(ctx, reqs)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Nil(t, r)
	}
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplainMoveReportsMajorPieceAttack(t *testing.T) {
	const fen = "3q3k/8/8/8/8/8/8/R3K3 w - - 0 1"
	session := &fakeSession{evals: map[string]*uci.Evaluation{
		key(fen): {ScoreCP: 0, Depth: 14, BestMove: "a1d1"},
	}}
	svc := newTestService(session)

	got, err := svc.ExplainMove(context.Background(), fen, "e1e2", 0)
	require.NoError(t, err)
	assert.False(t, got.AlreadyBest)
	assert.Equal(t, "Ke2", got.PlayedSAN)
	assert.Equal(t, "Rd1", got.BestSAN)
	assert.Equal(t, classify.ReasonAttackOnMajorPiece, got.Comparison.Reason)
}

func TestExplainMoveAlreadyBest(t *testing.T) {
	const fen = "3q3k/8/8/8/8/8/8/R3K3 w - - 0 1"
	session := &fakeSession{evals: map[string]*uci.Evaluation{
		key(fen): {ScoreCP: 0, Depth: 14, BestMove: "a1d1"},
	}}
	svc := newTestService(session)

	got, err := svc.ExplainMove(context.Background(), fen, "a1d1", 0)
	require.NoError(t, err)
	assert.True(t, got.AlreadyBest)
}

func TestTallySummaryFormula(t *testing.T) {
	tl := newTally()
	tl.add(0, uci.QualityBest)         // 1.0
	tl.add(100, uci.QualityInaccuracy) // 0.5
	tl.add(900, uci.QualityBlunder)    // capped at 500 -> 0

	s := tl.summary()
	assert.Equal(t, 3, s.Moves)
	assert.InDelta(t, 50, s.Accuracy, 0.001)
	assert.InDelta(t, 1000.0/3, s.AvgCPLoss, 0.001)
	assert.Equal(t, 1, s.Counts[uci.QualityBlunder])
}
