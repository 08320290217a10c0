package uci

import "fmt"

// Variation is one engine line: a sequence of UCI moves with its score.
// Scores are relative to the side to move, the native UCI convention.
type Variation struct {
	Moves   []string `json:"moves"`
	ScoreCP int      `json:"score_cp"`
	MateIn  int      `json:"mate_in,omitempty"`
	HasMate bool     `json:"has_mate,omitempty"`
}

// Evaluation is the result of analyzing one position.
type Evaluation struct {
	ScoreCP  int         `json:"score_cp"`           // side-to-move POV
	MateIn   int         `json:"mate_in,omitempty"`  // side-to-move POV, valid when HasMate
	HasMate  bool        `json:"has_mate,omitempty"`
	BestMove string      `json:"best_move"`          // UCI, empty for terminal positions
	PV       []string    `json:"pv,omitempty"`       // principal variation, UCI moves
	Depth    int         `json:"depth"`              // achieved search depth
	Lines    []Variation `json:"lines,omitempty"`    // MultiPV lines, best first
	Terminal bool        `json:"terminal,omitempty"` // no legal moves in this position
}

// ScoreString renders the evaluation the way game viewers print it:
// "+0.35" for centipawn scores, "#3" or "#-3" for forced mates.
func (e *Evaluation) ScoreString() string {
	if e.HasMate {
		return fmt.Sprintf("#%d", e.MateIn)
	}
	return fmt.Sprintf("%+.2f", float64(e.ScoreCP)/100)
}

// Quality is the six-way classification of a single move.
type Quality string

const (
	QualityBest       Quality = "best"
	QualityExcellent  Quality = "excellent"
	QualityGood       Quality = "good"
	QualityInaccuracy Quality = "inaccuracy"
	QualityMistake    Quality = "mistake"
	QualityBlunder    Quality = "blunder"
)

// qualityRank orders qualities from best to worst.
var qualityRank = map[Quality]int{
	QualityBest:       0,
	QualityExcellent:  1,
	QualityGood:       2,
	QualityInaccuracy: 3,
	QualityMistake:    4,
	QualityBlunder:    5,
}

// WorseThan reports whether q sits below other on the quality scale.
func (q Quality) WorseThan(other Quality) bool {
	return qualityRank[q] > qualityRank[other]
}

// Classify maps a centipawn loss to the six-way move quality scale.
// A missed mate is always a blunder no matter how small the cp loss.
func Classify(cpLoss int, missedMate bool) Quality {
	if missedMate {
		return QualityBlunder
	}
	switch {
	case cpLoss <= 0:
		return QualityBest
	case cpLoss <= 10:
		return QualityExcellent
	case cpLoss <= 30:
		return QualityGood
	case cpLoss <= 100:
		return QualityInaccuracy
	case cpLoss <= 300:
		return QualityMistake
	default:
		return QualityBlunder
	}
}
