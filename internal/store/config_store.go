package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildguard/internal/config"
)

// ConfigStore persists per-guild guard configuration as versioned JSON.
type ConfigStore struct {
	s *Store
}

// Guard returns the stored config for the guild, or defaults when none
// exists or the stored row cannot be parsed.
func (cs *ConfigStore) Guard(guildID string) *config.GuardConfig {
	var payload string
	err := cs.s.db.QueryRow(
		"SELECT config FROM guild_config WHERE guild_id = ?", guildID,
	).Scan(&payload)
	if err != nil {
		return config.DefaultGuardConfig(guildID)
	}

	var cfg config.GuardConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return config.DefaultGuardConfig(guildID)
	}
	cfg.GuildID = guildID
	return &cfg
}

// Set validates and persists the guild's guard config. Invalid configs
// are rejected and never reach the engine.
func (cs *ConfigStore) Set(cfg *config.GuardConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode guard config: %w", err)
	}

	mu := cs.s.guildMu.get(cfg.GuildID)
	mu.Lock()
	defer mu.Unlock()

	_, err = cs.s.db.Exec(`
		INSERT INTO guild_config (guild_id, config, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		cfg.GuildID, string(payload), time.Now().Unix())
	return err
}

// Exists reports whether the guild has a stored config.
func (cs *ConfigStore) Exists(guildID string) (bool, error) {
	var one int
	err := cs.s.db.QueryRow(
		"SELECT 1 FROM guild_config WHERE guild_id = ?", guildID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
