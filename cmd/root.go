package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chesscoach/chesscoach-go/cmd/analyze"
	"github.com/chesscoach/chesscoach-go/cmd/cache"
	"github.com/chesscoach/chesscoach-go/cmd/explain"
	"github.com/chesscoach/chesscoach-go/cmd/history"
	"github.com/chesscoach/chesscoach-go/cmd/position"
	"github.com/chesscoach/chesscoach-go/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *runtime.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "chesscoach",
		Short:   "ChessCoach-Go CLI",
		Version: fmt.Sprintf("%s (built %s)", ctx.Version, ctx.BuildDate),
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.Settings.Debug, "debug", "d", ctx.Settings.Debug, "Enable debug output")

	subcommands := []*cobra.Command{
		analyze.Command(ctx),
		position.Command(ctx),
		explain.Command(ctx),
		cache.Command(ctx),
		history.Command(ctx),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}
