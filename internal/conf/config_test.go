package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := defaultSettings()
	require.NoError(t, Validate(s))

	assert.Equal(t, 18, s.Analysis.GameDepth)
	assert.Equal(t, 12, s.Analysis.QuickDepth)
	assert.Equal(t, 22, s.Analysis.CriticalDepth)
	assert.Equal(t, 1000, s.Cache.MemoryEntries)
	assert.Equal(t, 10*time.Second, s.Cloud.Timeout)
	assert.InDelta(t, 1.0, s.Cloud.RatePerSecond, 0.0001)
	assert.Equal(t, 60*time.Second, s.Cloud.RateLimitPause)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty engine path", func(s *Settings) { s.Engine.Path = "" }},
		{"zero retries", func(s *Settings) { s.Engine.StartRetries = 0 }},
		{"negative depth", func(s *Settings) { s.Analysis.QuickDepth = -1 }},
		{"critical below game depth", func(s *Settings) { s.Analysis.CriticalDepth = 10 }},
		{"zero cache size", func(s *Settings) { s.Cache.MemoryEntries = 0 }},
		{"trim block above cache size", func(s *Settings) { s.Cache.TrimBlock = 5000 }},
		{"cloud enabled without endpoint", func(s *Settings) { s.Cloud.Endpoint = "" }},
		{"cloud rate zero", func(s *Settings) { s.Cloud.RatePerSecond = 0 }},
		{"sqlite enabled without path", func(s *Settings) { s.Output.SQLite.Path = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := defaultSettings()
			tc.mutate(s)
			assert.Error(t, Validate(s))
		})
	}
}
