// Package tactics performs stateless geometric analysis of chess
// positions: attack and defense maps, hanging and loose pieces, forks,
// pins, discovered attacks, trapped pieces and pre-move threats.
package tactics

import (
	"github.com/corentings/chess/v2"
)

// Board is the square occupancy used by all detectors.
type Board map[chess.Square]chess.Piece

// BoardOf extracts the occupancy map from a position.
func BoardOf(pos *chess.Position) Board {
	return Board(pos.Board().SquareMap())
}

// Piece values in pawn units. The king gets a large finite value so royal
// forks sort above everything else.
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  9,
	chess.King:   10,
}

// PieceValue returns the conventional value of a piece type in pawns.
func PieceValue(pt chess.PieceType) int {
	return pieceValues[pt]
}

var (
	knightOffsets = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	bishopDirs    = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookDirs      = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

func fileOf(sq chess.Square) int { return int(sq) % 8 }
func rankOf(sq chess.Square) int { return int(sq) / 8 }

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return chess.Square(rank*8 + file), true
}

// attackSquares returns the squares the piece on from currently attacks,
// given board occupancy. Pawn attacks are the two capture diagonals only.
func attackSquares(board Board, from chess.Square, piece chess.Piece) []chess.Square {
	switch piece.Type() {
	case chess.Pawn:
		return pawnAttacks(from, piece.Color())
	case chess.Knight:
		return leaperAttacks(from, knightOffsets)
	case chess.King:
		return leaperAttacks(from, kingOffsets)
	case chess.Bishop:
		return sliderAttacks(board, from, bishopDirs)
	case chess.Rook:
		return sliderAttacks(board, from, rookDirs)
	case chess.Queen:
		return append(sliderAttacks(board, from, bishopDirs), sliderAttacks(board, from, rookDirs)...)
	default:
		return nil
	}
}

func pawnAttacks(from chess.Square, color chess.Color) []chess.Square {
	dir := 1
	if color == chess.Black {
		dir = -1
	}
	var out []chess.Square
	for _, df := range []int{-1, 1} {
		if sq, ok := squareAt(fileOf(from)+df, rankOf(from)+dir); ok {
			out = append(out, sq)
		}
	}
	return out
}

func leaperAttacks(from chess.Square, offsets [][2]int) []chess.Square {
	var out []chess.Square
	for _, off := range offsets {
		if sq, ok := squareAt(fileOf(from)+off[0], rankOf(from)+off[1]); ok {
			out = append(out, sq)
		}
	}
	return out
}

func sliderAttacks(board Board, from chess.Square, dirs [][2]int) []chess.Square {
	var out []chess.Square
	for _, dir := range dirs {
		file, rank := fileOf(from), rankOf(from)
		for {
			file += dir[0]
			rank += dir[1]
			sq, ok := squareAt(file, rank)
			if !ok {
				break
			}
			out = append(out, sq)
			if _, occupied := board[sq]; occupied {
				break
			}
		}
	}
	return out
}

// AttackersOf returns the squares of byColor pieces attacking target.
func AttackersOf(board Board, target chess.Square, byColor chess.Color) []chess.Square {
	var out []chess.Square
	for sq, piece := range board {
		if piece.Color() != byColor || sq == target {
			continue
		}
		for _, atk := range attackSquares(board, sq, piece) {
			if atk == target {
				out = append(out, sq)
				break
			}
		}
	}
	return out
}

// DefendersOf returns the squares of color pieces defending target, i.e.
// pieces that would recapture there. The occupant of target itself does
// not count.
func DefendersOf(board Board, target chess.Square, color chess.Color) []chess.Square {
	return AttackersOf(board, target, color)
}

// cheapestAttacker returns the lowest-valued attacker of target, or false
// when target is not attacked.
func cheapestAttacker(board Board, target chess.Square, byColor chess.Color) (chess.Square, chess.Piece, bool) {
	var bestSq chess.Square
	var bestPiece chess.Piece
	best := 0
	for _, sq := range AttackersOf(board, target, byColor) {
		piece := board[sq]
		v := PieceValue(piece.Type())
		if best == 0 || v < best {
			best = v
			bestSq = sq
			bestPiece = piece
		}
	}
	return bestSq, bestPiece, best != 0
}

// kingSquare finds the king of the given color, reporting absence rather
// than failing; custom and test positions legitimately omit kings.
func kingSquare(board Board, color chess.Color) (chess.Square, bool) {
	for sq, piece := range board {
		if piece.Type() == chess.King && piece.Color() == color {
			return sq, true
		}
	}
	return 0, false
}
