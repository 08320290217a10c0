package tactics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
)

// Threat is something the opponent could do if it were their turn.
type Threat struct {
	Description string
	Value       int
}

// ThreatReport summarizes what the side not to move is threatening.
type ThreatReport struct {
	MateInOne bool
	Captures  []Threat
}

// Any reports whether the scan found anything at all.
func (r ThreatReport) Any() bool {
	return r.MateInOne || len(r.Captures) > 0
}

// maxCaptureThreats caps the capture list at the few worst threats; past
// that the position is simply lost and more detail does not help.
const maxCaptureThreats = 3

// ScanThreats inspects the position from the perspective of the side to
// move and reports what the opponent is threatening: profitable captures
// (the target is undefended or attacked by something cheaper) and mate in
// one, found by giving the opponent a free move.
func ScanThreats(pos *chess.Position) ThreatReport {
	mover := pos.Turn()
	board := BoardOf(pos)
	var report ThreatReport
	for sq, piece := range board {
		if piece.Color() != mover || piece.Type() == chess.King {
			continue
		}
		value := PieceValue(piece.Type())
		attackerSq, attacker, attacked := cheapestAttacker(board, sq, mover.Other())
		if !attacked {
			continue
		}
		profitable := PieceValue(attacker.Type()) < value || len(DefendersOf(board, sq, mover)) == 0
		if !profitable {
			continue
		}
		report.Captures = append(report.Captures, Threat{
			Description: fmt.Sprintf("%s on %s can take the %s on %s",
				pieceName(attacker.Type()), attackerSq.String(), pieceName(piece.Type()), sq.String()),
			Value: value,
		})
	}
	sort.SliceStable(report.Captures, func(i, j int) bool { return report.Captures[i].Value > report.Captures[j].Value })
	if len(report.Captures) > maxCaptureThreats {
		report.Captures = report.Captures[:maxCaptureThreats]
	}
	report.MateInOne = opponentMatesInOne(pos)
	return report
}

// opponentMatesInOne hands the move to the opponent via a null move and
// checks whether any reply delivers mate. Positions where the null move
// is not encodable (mover already in check) report false.
func opponentMatesInOne(pos *chess.Position) bool {
	flipped, err := chessmove.ParseFEN(flipSideToMove(pos.String()))
	if err != nil {
		return false
	}
	for _, mv := range flipped.ValidMoves() {
		next := flipped.Update(&mv)
		if next != nil && next.Status() == chess.Checkmate {
			return true
		}
	}
	return false
}

// flipSideToMove rewrites a FEN so the other side is to move. The en
// passant square is cleared since it belongs to the skipped half-move.
func flipSideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fen
	}
	if fields[1] == "w" {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	fields[3] = "-"
	return strings.Join(fields, " ")
}

func pieceName(pt chess.PieceType) string {
	switch pt {
	case chess.Pawn:
		return "pawn"
	case chess.Knight:
		return "knight"
	case chess.Bishop:
		return "bishop"
	case chess.Rook:
		return "rook"
	case chess.Queen:
		return "queen"
	case chess.King:
		return "king"
	default:
		return "piece"
	}
}
