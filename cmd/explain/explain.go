package explain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/internal/analysis"
	"github.com/chesscoach/chesscoach-go/internal/classify"
	"github.com/chesscoach/chesscoach-go/internal/runtime"
)

// Command creates the explain command for single-move comparisons.
func Command(ctx *runtime.Context) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "explain [FEN] [move]",
		Short: "Explain why the engine's move beats the played one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := ctx.Analysis.ExplainMove(cmd.Context(), args[0], args[1], depth)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if got.AlreadyBest {
				fmt.Fprintf(out, "%s is already the engine's choice\n", got.PlayedSAN)
				return nil
			}
			fmt.Fprintf(out, "played %s, engine prefers %s (costs %d cp)\n",
				got.PlayedSAN, got.BestSAN, got.CPLoss)
			fmt.Fprintln(out, describe(got))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Search depth, 0 uses the configured critical depth")

	return cmd
}

// describe renders the single comparison reason as a coaching sentence.
func describe(e *analysis.MoveExplanation) string {
	c := e.Comparison
	switch c.Reason {
	case classify.ReasonPieceTrap:
		return fmt.Sprintf("%s traps the piece on %s", e.BestSAN, c.TrappedPiece.Square)
	case classify.ReasonMobilityRestriction:
		return fmt.Sprintf("%s severely restricts the piece on %s", e.BestSAN, c.RestrictedSquare)
	case classify.ReasonMoreThreats:
		return fmt.Sprintf("%s creates %d more threats than %s", e.BestSAN, c.ThreatDelta, e.PlayedSAN)
	case classify.ReasonAttackOnMajorPiece:
		return fmt.Sprintf("%s attacks the major piece on %s", e.BestSAN, c.AttackedSquare)
	default:
		return fmt.Sprintf("%s simply improves the position", e.BestSAN)
	}
}
