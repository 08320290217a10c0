package analysis

import (
	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/classify"
	"github.com/chesscoach/chesscoach-go/internal/evalcache"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// GameRequest describes one game to analyze. Moves accepts SAN or UCI
// notation; PGN, when set, takes precedence over Moves.
type GameRequest struct {
	StartFEN    string
	PGN         string
	Moves       []string
	Perspective chess.Color
	Depth       int // 0 uses the configured game depth
}

// MoveEvaluation is the analysis record for one ply. Evaluations are in
// centipawns from the mover's perspective: positive means the mover
// stands better.
type MoveEvaluation struct {
	Ply        int // 1-based half-move index
	MoveNumber int // full move number as printed in game scores
	Player     chess.Color
	MoveSAN    string
	MoveUCI    string
	FENBefore  string

	Quality    uci.Quality
	CPLoss     int
	EvalBefore int
	EvalAfter  int
	HasMate    bool // mate found in the pre-move evaluation
	MateIn     int

	BestMove string
	BestLine []string
	Source   evalcache.Source
	Terminal bool // the move ended the game

	// Populated for the perspective player's inaccuracies and worse.
	Mistake *classify.Mistake
}

// ColorSummary aggregates one side's moves.
type ColorSummary struct {
	Moves     int
	Accuracy  float64
	AvgCPLoss float64
	Counts    map[uci.Quality]int
}

// GameResult is the full outcome of analyzing one game. Incomplete means
// at least one ply could not be evaluated; the remaining records are
// honest but the aggregates are not trustworthy.
type GameResult struct {
	Moves        []MoveEvaluation
	White        ColorSummary
	Black        ColorSummary
	Depth        int
	Incomplete   bool
	SkippedPlies int
}

// Summary returns the aggregate for the given color.
func (r *GameResult) Summary(color chess.Color) ColorSummary {
	if color == chess.Black {
		return r.Black
	}
	return r.White
}

// MoveExplanation answers "why was the engine's move better" with exactly
// one reason.
type MoveExplanation struct {
	PlayedSAN   string
	BestSAN     string
	CPLoss      int
	AlreadyBest bool
	Comparison  classify.Comparison
}
