package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.SchedulingURL, cfg.SchedulingDomain)
	assert.Equal(t, 5*time.Second, cfg.WaitingRoomPoll)
	assert.Equal(t, 3*time.Second, cfg.HookReinstall)
	assert.Equal(t, 5*time.Minute, cfg.PageReload)
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "visawatch.yaml")
		content := "headless: true\nsolver_model: gpt-4o\nnotify_url: https://example.com/ping\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.Headless)
		assert.Equal(t, "gpt-4o", cfg.SolverModel)
		assert.Equal(t, "https://example.com/ping", cfg.NotifyURL)
		// Untouched fields keep their defaults
		assert.Equal(t, Default().SchedulingURL, cfg.SchedulingURL)
	})

	t.Run("invalid yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "visawatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid override fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "visawatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`scheduling_url: ""`), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty scheduling url", func(c *Config) { c.SchedulingURL = "" }},
		{"empty scheduling domain", func(c *Config) { c.SchedulingDomain = "" }},
		{"empty identity domain", func(c *Config) { c.IdentityDomain = "" }},
		{"empty target endpoint", func(c *Config) { c.TargetEndpoint = "" }},
		{"empty profile dir", func(c *Config) { c.ProfileDir = "" }},
		{"zero poll interval", func(c *Config) { c.WaitingRoomPoll = 0 }},
		{"negative reinstall interval", func(c *Config) { c.HookReinstall = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
