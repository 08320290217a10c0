package analyze

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/internal/analysis"
	"github.com/chesscoach/chesscoach-go/internal/runtime"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// Command creates the analyze command for full-game analysis.
func Command(ctx *runtime.Context) *cobra.Command {
	var (
		moves       []string
		startFEN    string
		perspective string
		depth       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [game.pgn]",
		Short: "Analyze a full game move by move",
		Long:  "Evaluate every move of a game, grade each one and explain the mistakes of the chosen side.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := analysis.GameRequest{
				StartFEN: startFEN,
				Moves:    moves,
				Depth:    depth,
			}
			if len(args) == 1 {
				pgn, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("reading PGN file: %w", err)
				}
				req.PGN = string(pgn)
			}
			if req.PGN == "" && len(req.Moves) == 0 {
				return fmt.Errorf("provide a PGN file or --moves")
			}
			side, err := parseColor(perspective)
			if err != nil {
				return err
			}
			req.Perspective = side

			result, err := ctx.Analysis.AnalyzeGame(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printReport(cmd, result, side)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&moves, "moves", nil, "Moves in SAN or UCI notation, comma separated")
	cmd.Flags().StringVar(&startFEN, "fen", "", "Starting position as FEN, default is the initial position")
	cmd.Flags().StringVar(&perspective, "perspective", "white", "Side to coach (white/black)")
	cmd.Flags().IntVar(&depth, "depth", 0, "Search depth, 0 uses the configured game depth")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full result as JSON")

	return cmd
}

func parseColor(s string) (chess.Color, error) {
	switch strings.ToLower(s) {
	case "white", "w":
		return chess.White, nil
	case "black", "b":
		return chess.Black, nil
	default:
		return chess.White, fmt.Errorf("invalid perspective %q, want white or black", s)
	}
}

func printReport(cmd *cobra.Command, result *analysis.GameResult, side chess.Color) {
	out := cmd.OutOrStdout()

	for i := range result.Moves {
		mv := &result.Moves[i]
		prefix := fmt.Sprintf("%d.", mv.MoveNumber)
		if mv.Player == chess.Black {
			prefix = fmt.Sprintf("%d...", mv.MoveNumber)
		}
		fmt.Fprintf(out, "%-7s %-8s %-11s loss %4d  %s\n",
			prefix, mv.MoveSAN, mv.Quality, mv.CPLoss, evalColumn(mv))
		if mv.Mistake != nil {
			fmt.Fprintf(out, "        ^ %s (%s, %s)\n",
				mv.Mistake.Type, mv.Mistake.Context.Phase, mv.Mistake.Context.Standing)
		}
	}

	summary := result.Summary(side)
	fmt.Fprintf(out, "\nAccuracy: %.1f%%  avg loss %.0f cp over %d moves\n",
		summary.Accuracy, summary.AvgCPLoss, summary.Moves)
	fmt.Fprintf(out, "best %d  excellent %d  good %d  inaccuracies %d  mistakes %d  blunders %d\n",
		summary.Counts[uci.QualityBest], summary.Counts[uci.QualityExcellent],
		summary.Counts[uci.QualityGood], summary.Counts[uci.QualityInaccuracy],
		summary.Counts[uci.QualityMistake], summary.Counts[uci.QualityBlunder])
	if result.Incomplete {
		fmt.Fprintf(out, "warning: %d plies could not be evaluated, aggregates are partial\n",
			result.SkippedPlies)
	}
}

// evalColumn renders the post-move evaluation from the mover's side.
func evalColumn(mv *analysis.MoveEvaluation) string {
	eval := uci.Evaluation{ScoreCP: mv.EvalAfter}
	if mv.Terminal {
		return "game over"
	}
	return eval.ScoreString()
}
