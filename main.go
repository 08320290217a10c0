package main

import (
	"os"

	"github.com/chesscoach/chesscoach-go/cmd"
	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/runtime"
	"github.com/chesscoach/chesscoach-go/internal/telemetry"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}

	if err := telemetry.Init(settings.Sentry.DSN, version, settings.Sentry.Enabled); err != nil {
		logging.Warn("telemetry initialization failed", "error", err)
	}

	ctx, err := runtime.Build(settings, version, buildDate)
	if err != nil {
		logging.Fatal("service startup failed", "error", err)
	}

	execErr := cmd.RootCommand(ctx).Execute()

	ctx.Close()
	telemetry.Shutdown()
	if execErr != nil {
		os.Exit(1)
	}
}
