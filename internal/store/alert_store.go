package store

import (
	"database/sql"
	"errors"
	"time"
)

// AlertState throttles owner notifications per guild.
type AlertState struct {
	GuildID     string
	LastAlertAt time.Time
	AlertCount  int
}

type AlertStateStore struct {
	s *Store
}

// Get returns the guild's alert state; a zero state when none exists.
func (as *AlertStateStore) Get(guildID string) (*AlertState, error) {
	var lastAlertAt int64
	var count int
	err := as.s.db.QueryRow(
		"SELECT last_alert_at, alert_count FROM raid_alerts WHERE guild_id = ?", guildID,
	).Scan(&lastAlertAt, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return &AlertState{GuildID: guildID}, nil
	}
	if err != nil {
		return nil, err
	}

	state := &AlertState{GuildID: guildID, AlertCount: count}
	if lastAlertAt > 0 {
		state.LastAlertAt = time.Unix(0, lastAlertAt)
	}
	return state, nil
}

// MarkNotified records a sent alert: bumps the count and the timestamp.
func (as *AlertStateStore) MarkNotified(guildID string, at time.Time) error {
	mu := as.s.guildMu.get(guildID)
	mu.Lock()
	defer mu.Unlock()

	_, err := as.s.db.Exec(`
		INSERT INTO raid_alerts (guild_id, last_alert_at, alert_count) VALUES (?, ?, 1)
		ON CONFLICT(guild_id) DO UPDATE SET last_alert_at = excluded.last_alert_at, alert_count = alert_count + 1`,
		guildID, at.UnixNano())
	return err
}
