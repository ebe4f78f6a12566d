package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// FreeBackupIntervalHours is pinned for non-premium guilds.
	FreeBackupIntervalHours = 24

	freeSnapshotCap    = 2
	premiumSnapshotCap = 5
)

var validate = validator.New()

// GuardConfig is the per-guild protection configuration. Invalid values
// are rejected here, at configuration time, so the engine never sees
// out-of-range thresholds.
type GuardConfig struct {
	GuildID             string   `json:"guild_id"`
	Enabled             bool     `json:"enabled"`
	MaxActions          int      `json:"max_actions" validate:"min=1,max=20"`
	WindowSeconds       int      `json:"window_seconds" validate:"min=10,max=3600"`
	Whitelist           []string `json:"whitelist"`
	OwnerNotifications  bool     `json:"owner_notifications"`
	BackupEnabled       bool     `json:"backup_enabled"`
	BackupIntervalHours int      `json:"backup_interval_hours" validate:"min=1,max=24"`
	Premium             bool     `json:"premium"`
	LogChannelID        string   `json:"log_channel_id"`
}

func DefaultGuardConfig(guildID string) *GuardConfig {
	return &GuardConfig{
		GuildID:             guildID,
		Enabled:             false,
		MaxActions:          5,
		WindowSeconds:       300,
		OwnerNotifications:  true,
		BackupEnabled:       true,
		BackupIntervalHours: FreeBackupIntervalHours,
	}
}

// Validate checks threshold bounds and tier constraints.
func (c *GuardConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid guard config: %w", err)
	}
	if !c.Premium && c.BackupIntervalHours != FreeBackupIntervalHours {
		return fmt.Errorf("invalid guard config: backup interval is fixed at %dh for non-premium guilds", FreeBackupIntervalHours)
	}
	return nil
}

func (c *GuardConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c *GuardConfig) BackupInterval() time.Duration {
	return time.Duration(c.BackupIntervalHours) * time.Hour
}

// SnapshotCap is the per-guild snapshot retention limit.
func (c *GuardConfig) SnapshotCap() int {
	if c.Premium {
		return premiumSnapshotCap
	}
	return freeSnapshotCap
}

// IsWhitelisted reports whether the user is exempt from auto-mitigation.
// Whitelisted users are still subject to raid alerting.
func (c *GuardConfig) IsWhitelisted(userID string) bool {
	for _, id := range c.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// Source provides per-guild guard configuration to engine components.
type Source interface {
	Guard(guildID string) *GuardConfig
}
