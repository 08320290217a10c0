package cache

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/internal/runtime"
)

// Command creates the cache parent command.
func Command(ctx *runtime.Context) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the evaluation cache",
	}

	cacheCmd.AddCommand(statsCommand(ctx), pruneCommand(ctx))

	return cacheCmd
}

func statsCommand(ctx *runtime.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache tier sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "memory tier: %d entries\n", ctx.Chain.MemoryLen())
			if ctx.Store == nil {
				fmt.Fprintln(out, "persistent tier: disabled")
				return nil
			}
			count, err := ctx.Store.EvaluationCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "persistent tier: %d entries\n", count)
			return nil
		},
	}
}

func pruneCommand(ctx *runtime.Context) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stale cached evaluations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.Store == nil {
				return fmt.Errorf("persistent cache is disabled")
			}
			removed, err := ctx.Store.PruneEvaluations(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove entries last updated before this age")

	return cmd
}
