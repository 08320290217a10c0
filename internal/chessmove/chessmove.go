// Package chessmove is a thin layer over the chess rules library. It owns
// FEN parsing, move notation decoding and, importantly, the single place
// where engine scores are normalized between side-to-move, White and
// perspective sign conventions.
package chessmove

import (
	"strconv"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/errors"
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// GameFromFEN constructs a game rooted at the given position. Malformed
// FEN fails fast with a validation error, never a best-effort position.
func GameFromFEN(fen string) (*chess.Game, error) {
	option, err := chess.FEN(fen)
	if err != nil {
		return nil, errors.Newf("malformed FEN: %w", err).
			Component("chessmove").
			Category(errors.CategoryValidation).
			FENContext(fen).
			Build()
	}
	return chess.NewGame(option), nil
}

// GameFromPGN constructs a game from PGN text, preserving the move list.
func GameFromPGN(pgn string) (*chess.Game, error) {
	option, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, errors.Newf("malformed PGN: %w", err).
			Component("chessmove").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return chess.NewGame(option), nil
}

// ParseFEN parses a FEN string into a position.
func ParseFEN(fen string) (*chess.Position, error) {
	game, err := GameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return game.Position(), nil
}

// DecodeMove decodes a move in either UCI or SAN notation against the
// given position. UCI is tried first since it is unambiguous.
func DecodeMove(pos *chess.Position, moveStr string) (*chess.Move, error) {
	moveStr = strings.TrimSpace(moveStr)
	if moveStr == "" {
		return nil, errors.Newf("empty move").
			Component("chessmove").
			Category(errors.CategoryValidation).
			Build()
	}

	if mv, err := (chess.UCINotation{}).Decode(pos, strings.ToLower(moveStr)); err == nil {
		return mv, nil
	}
	mv, err := (chess.AlgebraicNotation{}).Decode(pos, moveStr)
	if err != nil {
		return nil, errors.Newf("illegal move %q in position %s: %w", moveStr, pos.String(), err).
			Component("chessmove").
			Category(errors.CategoryValidation).
			Build()
	}
	return mv, nil
}

// EncodeSAN renders a move in standard algebraic notation for the given
// position.
func EncodeSAN(pos *chess.Position, move *chess.Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, move)
}

// NormalizeFEN strips the halfmove clock and fullmove number from a FEN
// so transpositions reached by different move orders share a cache key.
func NormalizeFEN(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) <= 4 {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:4], " ")
}

// FullMoveNumber reads the fullmove counter from a position, so games
// rooted at a mid-game FEN keep their real move numbers. A position
// without the counter reports 1.
func FullMoveNumber(pos *chess.Position) int {
	fields := strings.Fields(pos.String())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// WhitePOVCentipawns converts an engine score, reported relative to the
// side to move, into White's point of view.
func WhitePOVCentipawns(cp int, sideToMove chess.Color) int {
	if sideToMove == chess.Black {
		return -cp
	}
	return cp
}

// WhitePOVMate applies the same side-to-move sign flip to a mate distance.
func WhitePOVMate(mateIn int, sideToMove chess.Color) int {
	if sideToMove == chess.Black {
		return -mateIn
	}
	return mateIn
}

// PerspectiveCentipawns converts a White-POV score into the perspective
// player's point of view: positive always means the perspective player is
// better.
func PerspectiveCentipawns(whiteCP int, perspective chess.Color) int {
	if perspective == chess.Black {
		return -whiteCP
	}
	return whiteCP
}

// PerspectiveMate converts a White-POV mate distance into the perspective
// player's point of view.
func PerspectiveMate(whiteMate int, perspective chess.Color) int {
	if perspective == chess.Black {
		return -whiteMate
	}
	return whiteMate
}

// Pawns converts centipawns into pawn units.
func Pawns(cp int) float64 {
	return float64(cp) / 100.0
}
