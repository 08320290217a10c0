// Package classify assigns a single mistake category to a played move by
// running an ordered rule table over board geometry and engine
// evaluations. Classification is a pure function: no engine session, no
// network, no randomness.
package classify

import (
	"github.com/corentings/chess/v2"

	"github.com/chesscoach/chesscoach-go/internal/tactics"
)

// MistakeType is the category assigned to one played move.
type MistakeType string

const (
	MistakeExcellent           MistakeType = "EXCELLENT"
	MistakeGood                MistakeType = "GOOD"
	MistakeWalkedIntoFork      MistakeType = "WALKED_INTO_FORK"
	MistakeWalkedIntoPin       MistakeType = "WALKED_INTO_PIN"
	MistakeMissedFork          MistakeType = "MISSED_FORK"
	MistakeMissedPin           MistakeType = "MISSED_PIN"
	MistakeHangingPiece        MistakeType = "HANGING_PIECE"
	MistakeMaterialBlunder     MistakeType = "MATERIAL_BLUNDER"
	MistakeBlunderWhenAhead    MistakeType = "BLUNDER_WHEN_AHEAD"
	MistakeIgnoredThreat       MistakeType = "IGNORED_THREAT"
	MistakeFailedConversion    MistakeType = "FAILED_CONVERSION"
	MistakeMissedWinningTactic MistakeType = "MISSED_WINNING_TACTIC"
	MistakeTimePressure        MistakeType = "TIME_PRESSURE_BLUNDER"
	MistakePositionalDrift     MistakeType = "POSITIONAL_DRIFT"
)

// Input is everything the classifier needs for one ply. Evaluations are
// in pawns from the mover's perspective, measured before and after the
// played move.
type Input struct {
	Before     *chess.Position
	After      *chess.Position
	Move       *chess.Move
	BestMove   *chess.Move
	EvalBefore float64
	EvalAfter  float64
	MoveNumber int
	Mover      chess.Color
}

// EvalDrop is how much the mover's standing worsened; negative when the
// move improved it.
func (in Input) EvalDrop() float64 {
	return in.EvalBefore - in.EvalAfter
}

// Mistake is the classification of one ply together with the supporting
// facts the rule matched on.
type Mistake struct {
	Type       MistakeType
	Context    Context
	EvalBefore float64
	EvalAfter  float64
	EvalDrop   float64

	// Supporting evidence; populated only by the rules that use it.
	Threats      tactics.ThreatReport
	HangingPiece *tactics.PieceOnSquare
	Fork         *tactics.Fork
	Pin          *tactics.Pin
}

// Standing thresholds in pawns.
const (
	excellentDrop     = 0.1
	goodDrop          = 0.3
	aheadThreshold    = 1.5
	materialTolerance = 2
	lateGameMove      = 35
)

// rule is one row of the classification table. Rules run in declaration
// order and the first match wins; the order is load-bearing and must not
// be rearranged.
type rule struct {
	mistake MistakeType
	matches func(*evaluation) bool
}

// evaluation carries the input plus lazily computed derived facts shared
// across rules.
type evaluation struct {
	in      Input
	ctx     Context
	drop    float64
	mistake Mistake

	bestPos     *chess.Position
	bestPosDone bool

	threats     tactics.ThreatReport
	threatsDone bool
}

func (e *evaluation) bestPosition() *chess.Position {
	if !e.bestPosDone {
		e.bestPosDone = true
		if e.in.BestMove != nil && e.in.Before != nil {
			e.bestPos = e.in.Before.Update(e.in.BestMove)
		}
	}
	return e.bestPos
}

func (e *evaluation) preMoveThreats() tactics.ThreatReport {
	if !e.threatsDone {
		e.threatsDone = true
		e.threats = tactics.ScanThreats(e.in.Before)
	}
	return e.threats
}

var rules = []rule{
	{MistakeExcellent, func(e *evaluation) bool { return e.drop <= excellentDrop }},
	{MistakeGood, func(e *evaluation) bool { return e.drop <= goodDrop }},
	{MistakeWalkedIntoFork, matchWalkedIntoFork},
	{MistakeWalkedIntoPin, matchWalkedIntoPin},
	{MistakeMissedFork, matchMissedFork},
	{MistakeMissedPin, matchMissedPin},
	{MistakeHangingPiece, matchHangingPiece},
	{MistakeMaterialBlunder, matchMaterialBlunder},
	{MistakeBlunderWhenAhead, func(e *evaluation) bool {
		return e.ctx.Standing == StandingAhead && e.in.EvalAfter < 1.0 && e.drop > 1.5
	}},
	{MistakeIgnoredThreat, matchIgnoredThreat},
	{MistakeFailedConversion, func(e *evaluation) bool {
		return e.ctx.Standing == StandingAhead && e.drop > 0.5 && e.in.EvalAfter > 0
	}},
	{MistakeMissedWinningTactic, func(e *evaluation) bool {
		return e.drop > 2.0 && e.ctx.Standing != StandingBehind
	}},
	{MistakeTimePressure, func(e *evaluation) bool { return e.ctx.IsLateGame && e.drop > 1.5 }},
	{MistakePositionalDrift, func(e *evaluation) bool { return e.drop > goodDrop }},
	{MistakeGood, func(*evaluation) bool { return true }},
}

// Classify runs the rule table over one ply and returns exactly one
// mistake type with its context flags. Identical inputs always produce
// identical results.
func Classify(in Input) Mistake {
	e := &evaluation{
		in:   in,
		ctx:  ContextOf(in.Before, in.Mover, in.EvalBefore, in.MoveNumber),
		drop: in.EvalDrop(),
	}
	e.mistake = Mistake{
		Context:    e.ctx,
		EvalBefore: in.EvalBefore,
		EvalAfter:  in.EvalAfter,
		EvalDrop:   e.drop,
	}
	for _, r := range rules {
		if r.matches(e) {
			e.mistake.Type = r.mistake
			return e.mistake
		}
	}
	// The table ends in an always-true rule; not reached.
	e.mistake.Type = MistakeGood
	return e.mistake
}

func matchWalkedIntoFork(e *evaluation) bool {
	if e.drop <= 1.0 || e.in.After == nil {
		return false
	}
	after := tactics.Forks(e.in.After, e.in.Mover)
	if len(after) == 0 || len(after) <= len(tactics.Forks(e.in.Before, e.in.Mover)) {
		return false
	}
	e.mistake.Fork = &after[0]
	return true
}

func matchWalkedIntoPin(e *evaluation) bool {
	if e.drop <= 0.5 || e.in.After == nil {
		return false
	}
	after := tactics.Pins(e.in.After, e.in.Mover)
	if len(after) == 0 || len(after) <= len(tactics.Pins(e.in.Before, e.in.Mover)) {
		return false
	}
	e.mistake.Pin = &after[0]
	return true
}

func matchMissedFork(e *evaluation) bool {
	if e.drop <= 1.5 {
		return false
	}
	best := e.bestPosition()
	if best == nil {
		return false
	}
	opponent := e.in.Mover.Other()
	withBest := tactics.Forks(best, opponent)
	if len(withBest) == 0 || len(withBest) <= len(tactics.Forks(e.in.Before, opponent)) {
		return false
	}
	e.mistake.Fork = &withBest[0]
	return true
}

func matchMissedPin(e *evaluation) bool {
	if e.drop <= 1.0 {
		return false
	}
	best := e.bestPosition()
	if best == nil {
		return false
	}
	opponent := e.in.Mover.Other()
	withBest := tactics.Pins(best, opponent)
	if len(withBest) == 0 || len(withBest) <= len(tactics.Pins(e.in.Before, opponent)) {
		return false
	}
	e.mistake.Pin = &withBest[0]
	return true
}

func matchHangingPiece(e *evaluation) bool {
	if e.drop <= 0.5 || e.in.After == nil {
		return false
	}
	hanging := tactics.HangingPieces(e.in.After, e.in.Mover)
	if len(hanging) == 0 {
		return false
	}
	e.mistake.HangingPiece = &hanging[0]
	return true
}

// matchMaterialBlunder fires when the opponent can win two or more points
// of material from the resulting position.
func matchMaterialBlunder(e *evaluation) bool {
	if e.drop <= 1.0 || e.in.After == nil {
		return false
	}
	return winnableMaterial(e.in.After, e.in.Mover) >= materialTolerance
}

func matchIgnoredThreat(e *evaluation) bool {
	if e.drop <= 1.0 {
		return false
	}
	threats := e.preMoveThreats()
	if !threats.Any() {
		return false
	}
	e.mistake.Threats = threats
	return true
}

// winnableMaterial is the best immediate material gain available against
// color: an undefended piece is worth its full value, a defended one only
// the exchange difference against the cheapest attacker.
func winnableMaterial(pos *chess.Position, color chess.Color) int {
	board := tactics.BoardOf(pos)
	best := 0
	for sq, piece := range board {
		if piece.Color() != color || piece.Type() == chess.King {
			continue
		}
		attackers := tactics.AttackersOf(board, sq, color.Other())
		if len(attackers) == 0 {
			continue
		}
		value := tactics.PieceValue(piece.Type())
		gain := value
		if len(tactics.DefendersOf(board, sq, color)) > 0 {
			cheapest := 0
			for _, atkSq := range attackers {
				v := tactics.PieceValue(board[atkSq].Type())
				if cheapest == 0 || v < cheapest {
					cheapest = v
				}
			}
			gain = value - cheapest
		}
		if gain > best {
			best = gain
		}
	}
	return best
}
