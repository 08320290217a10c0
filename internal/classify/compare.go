package classify

import (
	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/tactics"
)

// Reason is the single explanation for why the engine's move beats the
// played one. Exactly one is ever returned.
type Reason string

const (
	ReasonPieceTrap             Reason = "piece_trap"
	ReasonMobilityRestriction   Reason = "mobility_restriction"
	ReasonMoreThreats           Reason = "more_threats"
	ReasonAttackOnMajorPiece    Reason = "attack_on_major_piece"
	ReasonPositionalImprovement Reason = "positional_improvement"
)

// Comparison is the outcome of a deep move comparison.
type Comparison struct {
	Reason Reason

	// Detail for the matched reason; zero-valued otherwise.
	TrappedPiece     *tactics.TrappedPiece
	RestrictedSquare chess.Square
	ThreatDelta      int
	AttackedSquare   chess.Square
}

// Mobility drop that counts as restriction: the piece loses at least
// three squares and ends nearly immobile.
const (
	restrictionDrop    = 3
	restrictionCeiling = 3
	threatMargin       = 2
)

// CompareMoves explains why bestMove improves on played from the same
// position. Candidate explanations are checked in a fixed priority order
// and the first that holds is the answer; callers never see competing
// reasons.
func CompareMoves(before *chess.Position, played, bestMove *chess.Move, mover chess.Color) Comparison {
	playedPos := before.Update(played)
	bestPos := before.Update(bestMove)
	opponent := mover.Other()

	if trap := newTrap(before, bestPos, opponent); trap != nil {
		return Comparison{Reason: ReasonPieceTrap, TrappedPiece: trap}
	}
	if sq, ok := restrictedPiece(before, bestPos, opponent); ok {
		return Comparison{Reason: ReasonMobilityRestriction, RestrictedSquare: sq}
	}
	if delta := threatCount(bestPos) - threatCount(playedPos); delta >= threatMargin {
		return Comparison{Reason: ReasonMoreThreats, ThreatDelta: delta}
	}
	if sq, ok := newMajorPieceAttack(playedPos, bestPos, mover); ok {
		return Comparison{Reason: ReasonAttackOnMajorPiece, AttackedSquare: sq}
	}
	return Comparison{Reason: ReasonPositionalImprovement}
}

// newTrap reports an opponent piece trapped after the best move that was
// not trapped before.
func newTrap(before, bestPos *chess.Position, opponent chess.Color) *tactics.TrappedPiece {
	prior := make(map[chess.Square]bool)
	for _, tp := range tactics.TrappedPieces(before, opponent) {
		prior[tp.Square] = true
	}
	for _, tp := range tactics.TrappedPieces(bestPos, opponent) {
		if !prior[tp.Square] {
			return &tp
		}
	}
	return nil
}

// restrictedPiece finds an opponent piece whose mobility the best move
// collapses.
func restrictedPiece(before, bestPos *chess.Position, opponent chess.Color) (chess.Square, bool) {
	board := tactics.BoardOf(before)
	afterBoard := tactics.BoardOf(bestPos)
	for sq, piece := range board {
		if piece.Color() != opponent || piece.Type() == chess.Pawn {
			continue
		}
		if after, still := afterBoard[sq]; !still || after != piece {
			continue
		}
		was := tactics.Mobility(before, sq)
		now := tactics.Mobility(bestPos, sq)
		if was-now >= restrictionDrop && now <= restrictionCeiling {
			return sq, true
		}
	}
	return 0, false
}

// threatCount counts the mover's profitable capture threats in a position
// where the opponent is to move, plus mate in one as a threat.
func threatCount(pos *chess.Position) int {
	report := tactics.ScanThreats(pos)
	n := len(report.Captures)
	if report.MateInOne {
		n++
	}
	return n
}

// newMajorPieceAttack reports an opponent queen or rook attacked after the
// best move but not after the played one.
func newMajorPieceAttack(playedPos, bestPos *chess.Position, mover chess.Color) (chess.Square, bool) {
	attacked := func(pos *chess.Position) map[chess.Square]bool {
		board := tactics.BoardOf(pos)
		out := make(map[chess.Square]bool)
		for sq, piece := range board {
			if piece.Color() == mover {
				continue
			}
			if piece.Type() != chess.Queen && piece.Type() != chess.Rook {
				continue
			}
			if len(tactics.AttackersOf(board, sq, mover)) > 0 {
				out[sq] = true
			}
		}
		return out
	}
	played := attacked(playedPos)
	for sq := range attacked(bestPos) {
		if !played[sq] {
			return sq, true
		}
	}
	return 0, false
}
