package datastore

import (
	"strings"
	"time"

	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// CachedEvaluation is one persisted engine or cloud evaluation, keyed by
// normalized FEN (halfmove and fullmove counters stripped) so that
// transpositions share an entry.
type CachedEvaluation struct {
	ID        uint   `gorm:"primaryKey"`
	FENKey    string `gorm:"uniqueIndex;not null"`
	ScoreCP   int
	MateIn    int
	HasMate   bool
	BestMove  string
	PV        string // principal variation, space-separated UCI moves
	Depth     int    `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ToEvaluation converts the stored row back into the engine's shape.
func (c *CachedEvaluation) ToEvaluation() *uci.Evaluation {
	eval := &uci.Evaluation{
		ScoreCP:  c.ScoreCP,
		MateIn:   c.MateIn,
		HasMate:  c.HasMate,
		BestMove: c.BestMove,
		Depth:    c.Depth,
	}
	if c.PV != "" {
		eval.PV = strings.Fields(c.PV)
	}
	return eval
}

// FromEvaluation fills the storable columns from an evaluation.
func (c *CachedEvaluation) FromEvaluation(key string, eval *uci.Evaluation) {
	c.FENKey = key
	c.ScoreCP = eval.ScoreCP
	c.MateIn = eval.MateIn
	c.HasMate = eval.HasMate
	c.BestMove = eval.BestMove
	c.PV = strings.Join(eval.PV, " ")
	c.Depth = eval.Depth
}

// GameAnalysis is the persisted summary of one analyzed game.
type GameAnalysis struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	Perspective string // "white" or "black"
	Moves       string // played moves, space-separated
	MoveCount   int
	Depth       int
	Accuracy    float64
	AvgCPLoss   float64
	Incomplete  bool

	// Per-classification counts for the perspective player.
	Best         int
	Excellent    int
	Good         int
	Inaccuracies int
	Mistakes     int
	Blunders     int
}
