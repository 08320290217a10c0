package tactics

import (
	"testing"

	"github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
)

func positionFromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	pos, err := chessmove.ParseFEN(fen)
	require.NoError(t, err, "test position must parse: %s", fen)
	return pos
}

func squareNames(pieces []PieceOnSquare) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, p.Square.String())
	}
	return out
}

func TestHangingPieces(t *testing.T) {
	t.Parallel()

	t.Run("attacked and undefended knight hangs", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/3p4/4N3/8/8/8/4K3 w - - 0 1")
		hanging := HangingPieces(pos, chess.White)
		require.Len(t, hanging, 1)
		assert.Equal(t, "e5", hanging[0].Square.String())
		assert.Equal(t, chess.Knight, hanging[0].Piece.Type())
	})

	t.Run("defended piece does not hang", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/3p4/4N3/3P4/8/8/4K3 w - - 0 1")
		assert.Empty(t, HangingPieces(pos, chess.White))
	})

	t.Run("unattacked piece does not hang", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/8/4N3/8/8/8/4K3 w - - 0 1")
		assert.Empty(t, HangingPieces(pos, chess.White))
	})

	t.Run("sorted most valuable first", func(t *testing.T) {
		t.Parallel()
		// Queen on a5 and knight on h5, both hit by black pawns, neither defended.
		pos := positionFromFEN(t, "4k3/8/1p4p1/Q6N/8/8/8/4K3 w - - 0 1")
		hanging := HangingPieces(pos, chess.White)
		require.Len(t, hanging, 2)
		assert.Equal(t, []string{"a5", "h5"}, squareNames(hanging))
	})
}

// Every reported hanging piece must be attacked and have no defenders,
// across arbitrary positions.
func TestHangingPiecesAreUndefended(t *testing.T) {
	t.Parallel()
	fens := []string{
		chessmove.StartingFEN,
		"4k3/8/3p4/4N3/8/8/8/4K3 w - - 0 1",
		"r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 3 3",
		"1n1rk3/B1p5/1p6/8/8/8/8/4K3 w - - 0 1",
		"4k3/8/8/3q4/4P3/8/8/4K3 b - - 0 1",
	}
	for _, fen := range fens {
		pos := positionFromFEN(t, fen)
		board := BoardOf(pos)
		for _, color := range []chess.Color{chess.White, chess.Black} {
			for _, p := range HangingPieces(pos, color) {
				assert.NotEmpty(t, AttackersOf(board, p.Square, color.Other()),
					"%s in %s must be attacked", p.Square, fen)
				assert.Empty(t, DefendersOf(board, p.Square, color),
					"%s in %s must have no defenders", p.Square, fen)
			}
		}
	}
}

func TestLoosePieces(t *testing.T) {
	t.Parallel()
	pos := positionFromFEN(t, "4k3/8/3p4/4N3/8/8/8/4K3 w - - 0 1")

	white := LoosePieces(pos, chess.White)
	require.Len(t, white, 1)
	assert.Equal(t, "e5", white[0].Square.String())

	// The d6 pawn is not attacked but it is undefended, so it is loose.
	black := LoosePieces(pos, chess.Black)
	require.Len(t, black, 1)
	assert.Equal(t, "d6", black[0].Square.String())

	// In the starting position only the corner rooks are undefended.
	start := positionFromFEN(t, chessmove.StartingFEN)
	assert.ElementsMatch(t, []string{"a1", "h1"}, squareNames(LoosePieces(start, chess.White)))
	assert.ElementsMatch(t, []string{"a8", "h8"}, squareNames(LoosePieces(start, chess.Black)))
}

func TestForks(t *testing.T) {
	t.Parallel()

	t.Run("knight forks king and rook", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "r3k3/2N5/8/8/8/8/8/4K3 b - - 0 1")
		forks := Forks(pos, chess.Black)
		require.Len(t, forks, 1)
		assert.Equal(t, "c7", forks[0].Attacker.Square.String())
		assert.Equal(t, chess.Knight, forks[0].Attacker.Piece.Type())
		require.Len(t, forks[0].Targets, 2)
		assert.Equal(t, chess.King, forks[0].Targets[0].Piece.Type())
		assert.Equal(t, chess.Rook, forks[0].Targets[1].Piece.Type())
		assert.Equal(t, 15, forks[0].Combined)
	})

	t.Run("two pawns are below the fork threshold", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/8/2p1p3/3P4/8/8/4K3 b - - 0 1")
		assert.Empty(t, Forks(pos, chess.Black))
	})
}

func TestPins(t *testing.T) {
	t.Parallel()

	t.Run("rook pins along a file", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/4r3/8/8/4R3/8/8/4K3 w - - 0 1")
		pins := Pins(pos, chess.Black)
		require.Len(t, pins, 1)
		assert.Equal(t, "e7", pins[0].Pinned.Square.String())
		assert.Equal(t, "e4", pins[0].Pinner.Square.String())
		assert.Equal(t, "e8", pins[0].King.String())
	})

	t.Run("bishop pins along a diagonal", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/3q4/8/1B6/8/8/8/4K3 b - - 0 1")
		pins := Pins(pos, chess.Black)
		require.Len(t, pins, 1)
		assert.Equal(t, "d7", pins[0].Pinned.Square.String())
		assert.Equal(t, chess.Queen, pins[0].Pinned.Piece.Type())
	})

	t.Run("two blockers break the pin", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/4r3/4n3/8/4R3/8/8/4K3 w - - 0 1")
		assert.Empty(t, Pins(pos, chess.Black))
	})

	t.Run("no king means no pins", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "8/4r3/8/8/4R3/8/8/4K3 w - - 0 1")
		assert.Empty(t, Pins(pos, chess.Black))
	})
}

func TestDiscoveredAttacks(t *testing.T) {
	t.Parallel()

	t.Run("knight masks bishop from rook", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/8/6r1/8/8/3N4/2B1K3 w - - 0 1")
		das := DiscoveredAttacks(pos, chess.White)
		require.Len(t, das, 1)
		assert.Equal(t, "d2", das[0].Blocker.Square.String())
		assert.Equal(t, "c1", das[0].Slider.Square.String())
		assert.Equal(t, "g5", das[0].Target.Square.String())
		assert.False(t, das[0].IsCheck)
	})

	t.Run("discovered check flagged", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "8/8/8/6k1/8/8/3N4/2B1K3 w - - 0 1")
		das := DiscoveredAttacks(pos, chess.White)
		require.Len(t, das, 1)
		assert.True(t, das[0].IsCheck)
	})
}

func TestTrappedPieces(t *testing.T) {
	t.Parallel()

	t.Run("cornered bishop with no safe square", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "1n1rk3/B1p5/1p6/8/8/8/8/4K3 w - - 0 1")
		trapped := TrappedPieces(pos, chess.White)
		require.Len(t, trapped, 1)
		assert.Equal(t, "a7", trapped[0].Square.String())
		assert.True(t, trapped[0].Completely)
		assert.Empty(t, trapped[0].SafeSquares)
	})

	t.Run("bishop in the open is not trapped", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/8/8/2B5/8/8/4K3 w - - 0 1")
		assert.Empty(t, TrappedPieces(pos, chess.White))
	})
}

func TestScanThreats(t *testing.T) {
	t.Parallel()

	t.Run("queen attacked by pawn", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "4k3/8/8/3q4/4P3/8/8/4K3 b - - 0 1")
		report := ScanThreats(pos)
		require.Len(t, report.Captures, 1)
		assert.Contains(t, report.Captures[0].Description, "queen on d5")
		assert.Equal(t, 9, report.Captures[0].Value)
		assert.False(t, report.MateInOne)
		assert.True(t, report.Any())
	})

	t.Run("mate in one threat detected", func(t *testing.T) {
		t.Parallel()
		// After 3.Qh5 white threatens Qxf7#.
		pos := positionFromFEN(t, "r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 3 3")
		report := ScanThreats(pos)
		assert.True(t, report.MateInOne)
	})

	t.Run("quiet start has no threats", func(t *testing.T) {
		t.Parallel()
		report := ScanThreats(positionFromFEN(t, chessmove.StartingFEN))
		assert.Empty(t, report.Captures)
		assert.False(t, report.MateInOne)
		assert.False(t, report.Any())
	})
}
