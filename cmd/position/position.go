package position

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/runtime"
	"github.com/chesscoach/chesscoach-go/internal/tactics"
)

// Command creates the position command for single-position evaluation.
func Command(ctx *runtime.Context) *cobra.Command {
	var (
		depth    int
		noTactic bool
	)

	cmd := &cobra.Command{
		Use:   "position [FEN]",
		Short: "Evaluate a single position",
		Long:  "Evaluate one position and report the tactical motifs either side should be aware of.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fen := args[0]
			out := cmd.OutOrStdout()

			res, err := ctx.Analysis.EvaluatePosition(cmd.Context(), fen, depth)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "eval %s  depth %d  source %s\n",
				res.Eval.ScoreString(), res.Eval.Depth, res.Source)
			if res.Eval.BestMove != "" {
				fmt.Fprintf(out, "best %s", res.Eval.BestMove)
				if len(res.Eval.PV) > 1 {
					fmt.Fprintf(out, "  line %s", strings.Join(res.Eval.PV, " "))
				}
				fmt.Fprintln(out)
			}

			if noTactic {
				return nil
			}
			pos, err := chessmove.ParseFEN(fen)
			if err != nil {
				return err
			}
			printTactics(cmd, pos)
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Search depth, 0 uses the configured quick depth")
	cmd.Flags().BoolVar(&noTactic, "no-tactics", false, "Skip the tactical motif report")

	return cmd
}

func printTactics(cmd *cobra.Command, pos *chess.Position) {
	out := cmd.OutOrStdout()

	for _, color := range []chess.Color{chess.White, chess.Black} {
		side := colorName(color)
		if hanging := tactics.HangingPieces(pos, color); len(hanging) > 0 {
			names := make([]string, 0, len(hanging))
			for _, p := range hanging {
				names = append(names, p.Square.String())
			}
			fmt.Fprintf(out, "%s hanging: %s\n", side, strings.Join(names, " "))
		}
		for _, fork := range tactics.Forks(pos, color) {
			targets := make([]string, 0, len(fork.Targets))
			for _, t := range fork.Targets {
				targets = append(targets, t.Square.String())
			}
			fmt.Fprintf(out, "fork against %s: %s hits %s\n",
				side, fork.Attacker.Square, strings.Join(targets, " "))
		}
		for _, pin := range tactics.Pins(pos, color) {
			fmt.Fprintf(out, "%s piece pinned on %s by %s\n",
				side, pin.Pinned.Square, pin.Pinner.Square)
		}
		for _, disc := range tactics.DiscoveredAttacks(pos, color) {
			kind := "attack"
			if disc.IsCheck {
				kind = "check"
			}
			fmt.Fprintf(out, "%s discovered %s: moving %s unleashes %s against %s\n",
				side, kind, disc.Blocker.Square, disc.Slider.Square, disc.Target.Square)
		}
		for _, trap := range tactics.TrappedPieces(pos, color) {
			if trap.Completely {
				fmt.Fprintf(out, "%s piece on %s has no safe squares\n", side, trap.Square)
			} else {
				fmt.Fprintf(out, "%s piece on %s is nearly trapped (%d safe squares)\n",
					side, trap.Square, len(trap.SafeSquares))
			}
		}
	}

	threats := tactics.ScanThreats(pos)
	if threats.MateInOne {
		fmt.Fprintf(out, "%s threatens mate in one\n", colorName(pos.Turn().Other()))
	}
	for _, threat := range threats.Captures {
		fmt.Fprintf(out, "threat: %s\n", threat.Description)
	}
}

func colorName(c chess.Color) string {
	if c == chess.Black {
		return "black"
	}
	return "white"
}
