package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
bot:
  token: file-token
engine:
  raid_threshold: 4
  pace_interval_ms: 500
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, 4, cfg.Engine.RaidThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.PaceInterval())

	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Minute, cfg.Engine.AlertCooldown())
	assert.Equal(t, "guildguard.db", cfg.Database.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 3, cfg.Engine.RaidThreshold)
	assert.Equal(t, 60*time.Minute, cfg.Engine.CheckpointTTL())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot:\n  token: file-token\n"), 0o644))

	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}
