package chessmove

import (
	"testing"

	"github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesscoach/chesscoach-go/internal/errors"
)

func TestParseFEN_Malformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"not a fen",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1", // missing rank
	}
	for _, fen := range cases {
		_, err := ParseFEN(fen)
		require.Error(t, err, "fen %q", fen)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
}

func TestDecodeMove_UCIAndSAN(t *testing.T) {
	t.Parallel()

	pos, err := ParseFEN(StartingFEN)
	require.NoError(t, err)

	fromUCI, err := DecodeMove(pos, "e2e4")
	require.NoError(t, err)

	fromSAN, err := DecodeMove(pos, "e4")
	require.NoError(t, err)

	assert.Equal(t, fromUCI.String(), fromSAN.String())
}

func TestDecodeMove_Illegal(t *testing.T) {
	t.Parallel()

	pos, err := ParseFEN(StartingFEN)
	require.NoError(t, err)

	_, err = DecodeMove(pos, "e2e5")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNormalizeFEN(t *testing.T) {
	t.Parallel()

	const full = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 3 12"
	const stripped = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"

	assert.Equal(t, stripped, NormalizeFEN(full))
	// Idempotent on already-normalized input.
	assert.Equal(t, stripped, NormalizeFEN(stripped))
	// Transpositions with different counters share a key.
	other := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	assert.Equal(t, NormalizeFEN(other), NormalizeFEN(full))
}

func TestPerspectiveNormalization(t *testing.T) {
	t.Parallel()

	// Engine reports +50 with Black to move: White is worse.
	assert.Equal(t, -50, WhitePOVCentipawns(50, chess.Black))
	assert.Equal(t, 50, WhitePOVCentipawns(50, chess.White))

	// White-POV +120 seen from Black's perspective is -120.
	assert.Equal(t, -120, PerspectiveCentipawns(120, chess.Black))
	assert.Equal(t, 120, PerspectiveCentipawns(120, chess.White))

	// Double application round-trips.
	assert.Equal(t, 75, PerspectiveCentipawns(PerspectiveCentipawns(75, chess.Black), chess.Black))

	assert.Equal(t, -3, WhitePOVMate(3, chess.Black))
	assert.InDelta(t, 1.5, Pawns(150), 0.0001)
}
