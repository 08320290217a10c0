package classify

import (
	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/tactics"
)

// Phase is the stage of the game, decided by material on the board rather
// than move number.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

// Standing is the mover's evaluation standing before the move.
type Standing string

const (
	StandingAhead  Standing = "ahead"
	StandingBehind Standing = "behind"
	StandingEqual  Standing = "equal"
)

// Balance is the mover's material balance before the move.
type Balance string

const (
	BalanceUp    Balance = "up"
	BalanceDown  Balance = "down"
	BalanceEqual Balance = "equal"
)

// Context carries the flags attached to every classified move.
type Context struct {
	Phase      Phase
	Standing   Standing
	Material   Balance
	IsLateGame bool
}

// Material thresholds for phase detection, in pawn units with kings
// excluded. A full board counts 78.
const (
	endgameMaterial   = 26
	openingMaterial   = 60
	openingHomePieces = 10
)

// ContextOf derives the context flags for one ply. evalBefore is in pawns
// from the mover's perspective.
func ContextOf(pos *chess.Position, mover chess.Color, evalBefore float64, moveNumber int) Context {
	board := tactics.BoardOf(pos)
	ctx := Context{
		Phase:      phaseOf(board),
		Standing:   StandingEqual,
		Material:   BalanceEqual,
		IsLateGame: moveNumber > lateGameMove,
	}
	switch {
	case evalBefore > aheadThreshold:
		ctx.Standing = StandingAhead
	case evalBefore < -aheadThreshold:
		ctx.Standing = StandingBehind
	}
	balance := materialOf(board, mover) - materialOf(board, mover.Other())
	switch {
	case balance >= materialTolerance:
		ctx.Material = BalanceUp
	case balance <= -materialTolerance:
		ctx.Material = BalanceDown
	}
	return ctx
}

// phaseOf decides the game stage by total non-king material. The opening
// additionally requires most pieces still sitting on their back ranks, so
// an early queen trade does not fake an endgame and a shuffled full board
// does not fake an opening.
func phaseOf(board tactics.Board) Phase {
	total := materialOf(board, chess.White) + materialOf(board, chess.Black)
	if total <= endgameMaterial {
		return PhaseEndgame
	}
	if total >= openingMaterial && homeRankPieces(board) >= openingHomePieces {
		return PhaseOpening
	}
	return PhaseMiddlegame
}

func materialOf(board tactics.Board, color chess.Color) int {
	total := 0
	for _, piece := range board {
		if piece.Color() != color || piece.Type() == chess.King {
			continue
		}
		total += tactics.PieceValue(piece.Type())
	}
	return total
}

// homeRankPieces counts pieces of either color standing on their own back
// rank.
func homeRankPieces(board tactics.Board) int {
	n := 0
	for sq, piece := range board {
		rank := int(sq) / 8
		if piece.Color() == chess.White && rank == 0 {
			n++
		}
		if piece.Color() == chess.Black && rank == 7 {
			n++
		}
	}
	return n
}
