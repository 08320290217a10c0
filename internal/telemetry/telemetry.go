// Package telemetry wires optional Sentry error reporting into the errors
// package. Reporting is opt-in and disabled unless a DSN is configured.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/logging"
)

// Init initializes Sentry and installs the telemetry reporter. A missing
// DSN or enabled=false leaves error reporting switched off.
func Init(dsn, release string, enabled bool) error {
	if !enabled || dsn == "" {
		errors.SetTelemetryReporter(nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logging.Info("telemetry enabled", "release", release)
	return nil
}

// Shutdown flushes pending events and disables reporting.
func Shutdown() {
	errors.SetTelemetryReporter(nil)
	sentry.Flush(2 * time.Second)
}
