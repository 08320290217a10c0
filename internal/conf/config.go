// Package conf loads and validates the application configuration using
// viper, with YAML config file discovery and environment overrides.
package conf

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/chesscoach/chesscoach-go/internal/errors"
)

// Cloud lookup fallbacks applied when a field is left zero.
const (
	DefaultCloudTimeout        = 10 * time.Second
	DefaultCloudRateLimitPause = 60 * time.Second
	DefaultCloudResponseTTL    = 5 * time.Minute
)

// EngineSettings configures the local UCI engine session.
type EngineSettings struct {
	Path         string        // path to a UCI engine binary, e.g. stockfish
	Hash         int           // hash table size in MB
	Threads      int           // engine threads
	MultiPV      int           // principal variations to request
	StartRetries int           // process start / handshake attempts
	RetryBackoff time.Duration // delay between attempts
	MoveTimeout  time.Duration // upper bound for a single evaluate call
}

// AnalysisSettings holds the depth presets and pipeline limits.
type AnalysisSettings struct {
	GameDepth       int // full game analysis
	QuickDepth      int // quick lookups
	CriticalDepth   int // critical positions
	MaxParallelGame int // independent games analyzed concurrently
}

// CacheSettings configures the in-process memory tier.
type CacheSettings struct {
	MemoryEntries int // bounded size of the memory map
	TrimBlock     int // entries trimmed per overflow
}

// CloudSettings configures the pre-computed cloud evaluation lookup.
type CloudSettings struct {
	Enabled        bool
	Endpoint       string
	Timeout        time.Duration
	RatePerSecond  float64       // shared outbound request budget
	RateLimitPause time.Duration // backoff after HTTP 429
	ResponseTTL    time.Duration // short-lived response cache
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool

	Main struct {
		Name string // node name, used in logs
	}

	Engine   EngineSettings
	Analysis AnalysisSettings
	Cache    CacheSettings
	Cloud    CloudSettings

	Output struct {
		SQLite struct {
			Enabled bool
			Path    string
		}
	}

	Sentry struct {
		Enabled bool
		DSN     string
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Setting returns the process-wide settings, loading them on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}

	loaded, err := Load()
	if err != nil {
		// Callers asking for ambient settings get defaults on load failure;
		// explicit Load() reports the error.
		loaded = defaultSettings()
	}
	settingsMutex.Lock()
	settingsInstance = loaded
	settingsMutex.Unlock()
	return loaded
}

// SetTestSettings replaces the process-wide settings, for tests.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	settingsInstance = s
	settingsMutex.Unlock()
}

// Load reads the configuration file and environment into a Settings value.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/chesscoach-go")
	v.AddConfigPath("/etc/chesscoach-go")
	v.SetEnvPrefix("CHESSCOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		// No config file is fine, defaults apply.
	}

	s := defaultSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.New(fmt.Errorf("unmarshaling config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "chesscoach-go")

	v.SetDefault("engine.path", "stockfish")
	v.SetDefault("engine.hash", 128)
	v.SetDefault("engine.threads", 1)
	v.SetDefault("engine.multipv", 1)
	v.SetDefault("engine.startretries", 3)
	v.SetDefault("engine.retrybackoff", "500ms")
	v.SetDefault("engine.movetimeout", "120s")

	v.SetDefault("analysis.gamedepth", 18)
	v.SetDefault("analysis.quickdepth", 12)
	v.SetDefault("analysis.criticaldepth", 22)
	v.SetDefault("analysis.maxparallelgame", 2)

	v.SetDefault("cache.memoryentries", 1000)
	v.SetDefault("cache.trimblock", 100)

	v.SetDefault("cloud.enabled", true)
	v.SetDefault("cloud.endpoint", "https://lichess.org/api/cloud-eval")
	v.SetDefault("cloud.timeout", "10s")
	v.SetDefault("cloud.ratepersecond", 1.0)
	v.SetDefault("cloud.ratelimitpause", "60s")
	v.SetDefault("cloud.responsettl", "5m")

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "chesscoach.db")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}

func defaultSettings() *Settings {
	s := &Settings{}
	s.Main.Name = "chesscoach-go"
	s.Engine = EngineSettings{
		Path:         "stockfish",
		Hash:         128,
		Threads:      1,
		MultiPV:      1,
		StartRetries: 3,
		RetryBackoff: 500 * time.Millisecond,
		MoveTimeout:  120 * time.Second,
	}
	s.Analysis = AnalysisSettings{
		GameDepth:       18,
		QuickDepth:      12,
		CriticalDepth:   22,
		MaxParallelGame: 2,
	}
	s.Cache = CacheSettings{MemoryEntries: 1000, TrimBlock: 100}
	s.Cloud = CloudSettings{
		Enabled:        true,
		Endpoint:       "https://lichess.org/api/cloud-eval",
		Timeout:        10 * time.Second,
		RatePerSecond:  1.0,
		RateLimitPause: 60 * time.Second,
		ResponseTTL:    5 * time.Minute,
	}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "chesscoach.db"
	return s
}
