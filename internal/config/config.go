package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration loaded at startup.
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
}

type BotConfig struct {
	Token string `yaml:"token"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// EngineConfig holds the engine-wide tunables. Per-guild thresholds live
// in GuardConfig; these apply to every guild.
type EngineConfig struct {
	RaidThreshold        int `yaml:"raid_threshold"`
	AlertCooldownMinutes int `yaml:"alert_cooldown_minutes"`
	TimeoutMinutes       int `yaml:"timeout_minutes"`
	PaceIntervalMS       int `yaml:"pace_interval_ms"`
	CheckpointTTLMinutes int `yaml:"checkpoint_ttl_minutes"`
	CheckpointEvery      int `yaml:"checkpoint_every"`
	ConfirmWindowSeconds int `yaml:"confirm_window_seconds"`
}

func (e EngineConfig) AlertCooldown() time.Duration {
	return time.Duration(e.AlertCooldownMinutes) * time.Minute
}

func (e EngineConfig) TimeoutDuration() time.Duration {
	return time.Duration(e.TimeoutMinutes) * time.Minute
}

func (e EngineConfig) PaceInterval() time.Duration {
	return time.Duration(e.PaceIntervalMS) * time.Millisecond
}

func (e EngineConfig) CheckpointTTL() time.Duration {
	return time.Duration(e.CheckpointTTLMinutes) * time.Minute
}

func (e EngineConfig) ConfirmWindow() time.Duration {
	return time.Duration(e.ConfirmWindowSeconds) * time.Second
}

// Load reads the config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadOrDefault falls back to defaults when the config file is missing.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = DefaultConfig()
		applyEnv(cfg)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "guildguard.db",
		},
		Log: LogConfig{
			Level: "info",
			File:  "guildguard.log",
		},
		Engine: EngineConfig{
			RaidThreshold:        3,
			AlertCooldownMinutes: 30,
			TimeoutMinutes:       10,
			PaceIntervalMS:       350,
			CheckpointTTLMinutes: 60,
			CheckpointEvery:      5,
			ConfirmWindowSeconds: 60,
		},
	}
}
