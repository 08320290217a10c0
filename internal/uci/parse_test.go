package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInfoLine(t *testing.T) {
	t.Parallel()

	t.Run("cp score with pv", func(t *testing.T) {
		t.Parallel()
		upd, ok := parseInfoLine("info depth 18 seldepth 28 multipv 1 score cp 34 nodes 1229000 nps 850000 time 1446 pv e2e4 e7e5 g1f3")
		require.True(t, ok)
		assert.Equal(t, 18, upd.depth)
		assert.Equal(t, 1, upd.multiPV)
		assert.Equal(t, 34, upd.scoreCP)
		assert.False(t, upd.hasMate)
		assert.Equal(t, []string{"e2e4", "e7e5", "g1f3"}, upd.pv)
	})

	t.Run("mate score", func(t *testing.T) {
		t.Parallel()
		upd, ok := parseInfoLine("info depth 12 score mate 3 pv h5f7")
		require.True(t, ok)
		assert.True(t, upd.hasMate)
		assert.Equal(t, 3, upd.mateIn)
	})

	t.Run("negative scores", func(t *testing.T) {
		t.Parallel()
		upd, ok := parseInfoLine("info depth 10 score cp -250 pv d8h4")
		require.True(t, ok)
		assert.Equal(t, -250, upd.scoreCP)

		upd, ok = parseInfoLine("info depth 10 score mate -2 pv e8f8")
		require.True(t, ok)
		assert.Equal(t, -2, upd.mateIn)
	})

	t.Run("multipv index", func(t *testing.T) {
		t.Parallel()
		upd, ok := parseInfoLine("info depth 15 multipv 2 score cp -12 pv d2d4 d7d5")
		require.True(t, ok)
		assert.Equal(t, 2, upd.multiPV)
	})

	t.Run("unscored lines rejected", func(t *testing.T) {
		t.Parallel()
		for _, line := range []string{
			"info string NNUE evaluation enabled",
			"info depth 20 currmove e2e4 currmovenumber 1",
			"bestmove e2e4",
			"readyok",
		} {
			_, ok := parseInfoLine(line)
			assert.False(t, ok, "line %q", line)
		}
	})
}

func TestParseBestMove(t *testing.T) {
	t.Parallel()

	mv, ok := parseBestMove("bestmove e2e4 ponder e7e5")
	require.True(t, ok)
	assert.Equal(t, "e2e4", mv)

	mv, ok = parseBestMove("bestmove (none)")
	require.True(t, ok)
	assert.Empty(t, mv)

	_, ok = parseBestMove("info depth 1 score cp 0")
	assert.False(t, ok)
}

func TestBuildEvaluation(t *testing.T) {
	t.Parallel()

	t.Run("single pv", func(t *testing.T) {
		t.Parallel()
		updates := map[int]infoUpdate{
			1: {depth: 18, multiPV: 1, scoreCP: 42, pv: []string{"e2e4", "c7c5"}, scored: true},
		}
		ev := buildEvaluation(updates, "e2e4")
		assert.Equal(t, 42, ev.ScoreCP)
		assert.Equal(t, 18, ev.Depth)
		assert.Equal(t, "e2e4", ev.BestMove)
		assert.Empty(t, ev.Lines)
		assert.False(t, ev.Terminal)
	})

	t.Run("terminal position", func(t *testing.T) {
		t.Parallel()
		ev := buildEvaluation(map[int]infoUpdate{}, "")
		assert.True(t, ev.Terminal)
		assert.Empty(t, ev.BestMove)
	})

	t.Run("multipv lines best first", func(t *testing.T) {
		t.Parallel()
		updates := map[int]infoUpdate{
			1: {depth: 20, multiPV: 1, scoreCP: 31, pv: []string{"e2e4"}, scored: true},
			2: {depth: 20, multiPV: 2, scoreCP: 22, pv: []string{"d2d4"}, scored: true},
		}
		ev := buildEvaluation(updates, "e2e4")
		require.Len(t, ev.Lines, 2)
		assert.Equal(t, 31, ev.Lines[0].ScoreCP)
		assert.Equal(t, 22, ev.Lines[1].ScoreCP)
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cpLoss     int
		missedMate bool
		want       Quality
	}{
		{0, false, QualityBest},
		{-15, false, QualityBest},
		{1, false, QualityExcellent},
		{10, false, QualityExcellent},
		{11, false, QualityGood},
		{30, false, QualityGood},
		{31, false, QualityInaccuracy},
		{100, false, QualityInaccuracy},
		{101, false, QualityMistake},
		{300, false, QualityMistake},
		{301, false, QualityBlunder},
		{5, true, QualityBlunder}, // missed mate overrides low cp loss
		{0, true, QualityBlunder},
	}

	for _, tc := range cases {
		got := Classify(tc.cpLoss, tc.missedMate)
		assert.Equal(t, tc.want, got, "classify(%d, %v)", tc.cpLoss, tc.missedMate)
	}
}
