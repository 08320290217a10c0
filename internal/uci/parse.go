package uci

import (
	"strconv"
	"strings"
)

// infoUpdate is one parsed "info" line from the engine.
type infoUpdate struct {
	depth   int
	multiPV int
	scoreCP int
	mateIn  int
	hasMate bool
	pv      []string
	scored  bool
}

// parseInfoLine extracts depth, multipv, score and pv from an engine info
// line. Lines without a score (e.g. "info string ...", currmove updates)
// return ok=false.
func parseInfoLine(line string) (infoUpdate, bool) {
	if !strings.HasPrefix(line, "info") {
		return infoUpdate{}, false
	}

	upd := infoUpdate{multiPV: 1}
	fields := strings.Fields(line)

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				upd.depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				upd.multiPV, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					upd.scoreCP, _ = strconv.Atoi(fields[i+2])
					upd.scored = true
				case "mate":
					upd.mateIn, _ = strconv.Atoi(fields[i+2])
					upd.hasMate = true
					upd.scored = true
				}
				i += 2
			}
		case "pv":
			// pv is always the last token group on the line
			if i+1 < len(fields) {
				upd.pv = fields[i+1:]
			}
			i = len(fields)
		}
	}

	return upd, upd.scored
}

// parseBestMove extracts the move from a "bestmove" line. A terminal
// position yields "bestmove (none)" which maps to an empty move.
func parseBestMove(line string) (string, bool) {
	if !strings.HasPrefix(line, "bestmove") {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[1] == "(none)" {
		return "", true
	}
	return fields[1], true
}

// buildEvaluation assembles the final Evaluation from the collected
// best-per-multipv updates and the bestmove token.
func buildEvaluation(updates map[int]infoUpdate, bestMove string) *Evaluation {
	ev := &Evaluation{BestMove: bestMove}

	primary, ok := updates[1]
	if ok {
		ev.ScoreCP = primary.scoreCP
		ev.MateIn = primary.mateIn
		ev.HasMate = primary.hasMate
		ev.PV = primary.pv
		ev.Depth = primary.depth
	}
	if bestMove == "" {
		ev.Terminal = true
	}
	if ev.BestMove == "" && len(ev.PV) > 0 {
		ev.BestMove = ev.PV[0]
	}

	if len(updates) > 1 {
		for i := 1; i <= len(updates); i++ {
			upd, ok := updates[i]
			if !ok {
				continue
			}
			ev.Lines = append(ev.Lines, Variation{
				Moves:   upd.pv,
				ScoreCP: upd.scoreCP,
				MateIn:  upd.mateIn,
				HasMate: upd.hasMate,
			})
		}
	}

	return ev
}
