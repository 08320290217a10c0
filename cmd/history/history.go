package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/internal/runtime"
)

// Command creates the history command listing stored game analyses.
func Command(ctx *runtime.Context) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent game analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.Store == nil {
				return fmt.Errorf("persistent storage is disabled")
			}
			analyses, err := ctx.Store.RecentGameAnalyses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(analyses) == 0 {
				fmt.Fprintln(out, "no stored analyses")
				return nil
			}
			for i := range analyses {
				a := &analyses[i]
				flag := ""
				if a.Incomplete {
					flag = "  (incomplete)"
				}
				fmt.Fprintf(out, "#%d %s  %s  %d moves  accuracy %.1f%%  avg loss %.0f cp%s\n",
					a.ID, a.CreatedAt.Format("2006-01-02 15:04"), a.Perspective,
					a.MoveCount, a.Accuracy, a.AvgCPLoss, flag)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of analyses to list")

	return cmd
}
