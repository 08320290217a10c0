package conf

import (
	"github.com/chesscoach/chesscoach-go/internal/errors"
)

// Validate checks a Settings value for configuration mistakes that would
// only surface later as confusing runtime failures.
func Validate(s *Settings) error {
	if s.Engine.Path == "" {
		return errors.Newf("engine.path must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Engine.StartRetries < 1 {
		return errors.Newf("engine.startretries must be at least 1, got %d", s.Engine.StartRetries).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Analysis.GameDepth < 1 || s.Analysis.QuickDepth < 1 || s.Analysis.CriticalDepth < 1 {
		return errors.Newf("analysis depths must be positive (game=%d quick=%d critical=%d)",
			s.Analysis.GameDepth, s.Analysis.QuickDepth, s.Analysis.CriticalDepth).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Analysis.CriticalDepth < s.Analysis.GameDepth {
		return errors.Newf("analysis.criticaldepth (%d) must not be below analysis.gamedepth (%d)",
			s.Analysis.CriticalDepth, s.Analysis.GameDepth).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Analysis.MaxParallelGame < 1 {
		return errors.Newf("analysis.maxparallelgame must be at least 1, got %d", s.Analysis.MaxParallelGame).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Cache.MemoryEntries < 1 {
		return errors.Newf("cache.memoryentries must be positive, got %d", s.Cache.MemoryEntries).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Cache.TrimBlock < 1 || s.Cache.TrimBlock > s.Cache.MemoryEntries {
		return errors.Newf("cache.trimblock must be in [1, %d], got %d", s.Cache.MemoryEntries, s.Cache.TrimBlock).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Cloud.Enabled {
		if s.Cloud.Endpoint == "" {
			return errors.Newf("cloud.endpoint must not be empty when cloud lookup is enabled").
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if s.Cloud.RatePerSecond <= 0 {
			return errors.Newf("cloud.ratepersecond must be positive, got %f", s.Cloud.RatePerSecond).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		return errors.Newf("output.sqlite.path must not be empty when sqlite output is enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
