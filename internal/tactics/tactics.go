package tactics

import (
	"sort"

	"github.com/corentings/chess/v2"
)

// PieceOnSquare identifies a piece together with its location and value.
type PieceOnSquare struct {
	Square chess.Square
	Piece  chess.Piece
	Value  int
}

func pieceOn(board Board, sq chess.Square) PieceOnSquare {
	piece := board[sq]
	return PieceOnSquare{Square: sq, Piece: piece, Value: PieceValue(piece.Type())}
}

// HangingPieces returns color's pieces that are attacked by the opponent
// and have no defenders at all, most valuable first. Kings are excluded;
// an attacked king is check, not a capture target.
func HangingPieces(pos *chess.Position, color chess.Color) []PieceOnSquare {
	board := BoardOf(pos)
	var out []PieceOnSquare
	for sq, piece := range board {
		if piece.Color() != color || piece.Type() == chess.King {
			continue
		}
		if len(AttackersOf(board, sq, color.Other())) == 0 {
			continue
		}
		if len(DefendersOf(board, sq, color)) == 0 {
			out = append(out, pieceOn(board, sq))
		}
	}
	sortByValueDesc(out)
	return out
}

// LoosePieces returns color's undefended pieces whether or not they are
// currently attacked, most valuable first. Loose pieces are the raw
// material of forks and skewers.
func LoosePieces(pos *chess.Position, color chess.Color) []PieceOnSquare {
	board := BoardOf(pos)
	var out []PieceOnSquare
	for sq, piece := range board {
		if piece.Color() != color || piece.Type() == chess.King {
			continue
		}
		if len(DefendersOf(board, sq, color)) == 0 {
			out = append(out, pieceOn(board, sq))
		}
	}
	sortByValueDesc(out)
	return out
}

// Fork is a single enemy piece attacking two or more of the subject's
// pieces with sufficient combined value.
type Fork struct {
	Attacker PieceOnSquare
	Targets  []PieceOnSquare
	Combined int
}

// forkThreshold is the minimum combined target value for an attack pattern
// to count as a fork; two pawns do not make one.
const forkThreshold = 5

// Forks returns forks against color's pieces, ordered by combined target
// value descending. The king is a valid fork target.
func Forks(pos *chess.Position, color chess.Color) []Fork {
	board := BoardOf(pos)
	var out []Fork
	for sq, piece := range board {
		if piece.Color() == color {
			continue
		}
		var targets []PieceOnSquare
		combined := 0
		for _, atk := range attackSquares(board, sq, piece) {
			victim, ok := board[atk]
			if !ok || victim.Color() != color {
				continue
			}
			t := pieceOn(board, atk)
			targets = append(targets, t)
			combined += t.Value
		}
		if len(targets) < 2 || combined < forkThreshold {
			continue
		}
		sortByValueDesc(targets)
		out = append(out, Fork{Attacker: pieceOn(board, sq), Targets: targets, Combined: combined})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Combined > out[j].Combined })
	return out
}

// Pin is a piece that cannot move off a line without exposing its king.
type Pin struct {
	Pinned PieceOnSquare
	Pinner PieceOnSquare
	King   chess.Square
}

// Pins returns color's pieces pinned to their own king, most valuable
// first. Positions without a king yield no pins.
func Pins(pos *chess.Position, color chess.Color) []Pin {
	board := BoardOf(pos)
	king, ok := kingSquare(board, color)
	if !ok {
		return nil
	}
	var out []Pin
	for _, dir := range append(append([][2]int{}, bishopDirs...), rookDirs...) {
		pinned, pinner, found := pinAlong(board, king, dir, color)
		if found {
			out = append(out, Pin{Pinned: pinned, Pinner: pinner, King: king})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pinned.Value > out[j].Pinned.Value })
	return out
}

// pinAlong walks one ray from the king: a single friendly piece followed
// by an enemy slider that moves along that ray is a pin.
func pinAlong(board Board, king chess.Square, dir [2]int, color chess.Color) (pinned, pinner PieceOnSquare, found bool) {
	diagonal := dir[0] != 0 && dir[1] != 0
	file, rank := fileOf(king), rankOf(king)
	var blocker chess.Square
	haveBlocker := false
	for {
		file += dir[0]
		rank += dir[1]
		sq, ok := squareAt(file, rank)
		if !ok {
			return PieceOnSquare{}, PieceOnSquare{}, false
		}
		piece, occupied := board[sq]
		if !occupied {
			continue
		}
		if piece.Color() == color {
			if haveBlocker {
				return PieceOnSquare{}, PieceOnSquare{}, false
			}
			blocker = sq
			haveBlocker = true
			continue
		}
		if !haveBlocker {
			return PieceOnSquare{}, PieceOnSquare{}, false
		}
		if slidesAlong(piece.Type(), diagonal) {
			return pieceOn(board, blocker), pieceOn(board, sq), true
		}
		return PieceOnSquare{}, PieceOnSquare{}, false
	}
}

func slidesAlong(pt chess.PieceType, diagonal bool) bool {
	if pt == chess.Queen {
		return true
	}
	if diagonal {
		return pt == chess.Bishop
	}
	return pt == chess.Rook
}

// DiscoveredAttack is a friendly piece masking a friendly slider's line to
// an enemy piece; moving the blocker unleashes the attack.
type DiscoveredAttack struct {
	Blocker PieceOnSquare
	Slider  PieceOnSquare
	Target  PieceOnSquare
	IsCheck bool
}

// DiscoveredAttacks returns color's available discovered attacks, ordered
// by target value descending.
func DiscoveredAttacks(pos *chess.Position, color chess.Color) []DiscoveredAttack {
	board := BoardOf(pos)
	var out []DiscoveredAttack
	for sq, piece := range board {
		if piece.Color() != color {
			continue
		}
		var dirs [][2]int
		switch piece.Type() {
		case chess.Bishop:
			dirs = bishopDirs
		case chess.Rook:
			dirs = rookDirs
		case chess.Queen:
			dirs = append(append([][2]int{}, bishopDirs...), rookDirs...)
		default:
			continue
		}
		for _, dir := range dirs {
			da, found := discoveredAlong(board, sq, dir, color)
			if found {
				da.Slider = pieceOn(board, sq)
				out = append(out, da)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Target.Value > out[j].Target.Value })
	return out
}

func discoveredAlong(board Board, slider chess.Square, dir [2]int, color chess.Color) (DiscoveredAttack, bool) {
	file, rank := fileOf(slider), rankOf(slider)
	var blocker chess.Square
	haveBlocker := false
	for {
		file += dir[0]
		rank += dir[1]
		sq, ok := squareAt(file, rank)
		if !ok {
			return DiscoveredAttack{}, false
		}
		piece, occupied := board[sq]
		if !occupied {
			continue
		}
		if !haveBlocker {
			if piece.Color() != color {
				return DiscoveredAttack{}, false
			}
			blocker = sq
			haveBlocker = true
			continue
		}
		if piece.Color() == color {
			return DiscoveredAttack{}, false
		}
		return DiscoveredAttack{
			Blocker: pieceOn(board, blocker),
			Target:  pieceOn(board, sq),
			IsCheck: piece.Type() == chess.King,
		}, true
	}
}

// TrappedPiece is a valuable piece with few or no safe squares to run to.
type TrappedPiece struct {
	PieceOnSquare
	SafeSquares []chess.Square
	Completely  bool
}

// Minimum value for a piece to be worth trapping, and the mobility ceiling
// under which it counts as trapped.
const (
	trappedMinValue    = 3
	trappedMaxMobility = 2
)

// TrappedPieces returns color's minor and major pieces with at most two
// safe destinations, most valuable first. A destination is safe when a
// capture there could not win material.
func TrappedPieces(pos *chess.Position, color chess.Color) []TrappedPiece {
	board := BoardOf(pos)
	var out []TrappedPiece
	for sq, piece := range board {
		if piece.Color() != color || piece.Type() == chess.King || piece.Type() == chess.Pawn {
			continue
		}
		value := PieceValue(piece.Type())
		if value < trappedMinValue {
			continue
		}
		safe := safeDestinations(board, sq, piece)
		if len(safe) > trappedMaxMobility {
			continue
		}
		out = append(out, TrappedPiece{
			PieceOnSquare: pieceOn(board, sq),
			SafeSquares:   safe,
			Completely:    len(safe) == 0,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// safeDestinations counts squares the piece could relocate to without
// losing material on the spot. The moving piece is lifted off the board
// first so its own lines do not mask enemy sliders.
func safeDestinations(board Board, from chess.Square, piece chess.Piece) []chess.Square {
	lifted := make(Board, len(board))
	for sq, p := range board {
		if sq == from {
			continue
		}
		lifted[sq] = p
	}
	value := PieceValue(piece.Type())
	var safe []chess.Square
	for _, dest := range attackSquares(board, from, piece) {
		if occupant, ok := board[dest]; ok && occupant.Color() == piece.Color() {
			continue
		}
		if _, attacker, attacked := cheapestAttacker(lifted, dest, piece.Color().Other()); attacked {
			if PieceValue(attacker.Type()) < value {
				continue
			}
			if len(DefendersOf(lifted, dest, piece.Color())) == 0 {
				continue
			}
		}
		safe = append(safe, dest)
	}
	return safe
}

// Mobility counts the squares the piece on sq could move or capture to,
// ignoring checks. Zero for empty squares.
func Mobility(pos *chess.Position, sq chess.Square) int {
	board := BoardOf(pos)
	piece, ok := board[sq]
	if !ok {
		return 0
	}
	n := 0
	for _, dest := range attackSquares(board, sq, piece) {
		if occupant, occupied := board[dest]; occupied && occupant.Color() == piece.Color() {
			continue
		}
		n++
	}
	return n
}

func sortByValueDesc(pieces []PieceOnSquare) {
	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].Value > pieces[j].Value })
}
