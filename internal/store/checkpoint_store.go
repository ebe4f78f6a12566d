package store

import (
	"database/sql"
	"errors"
	"time"
)

// CheckpointStore keeps at most one live rebuild checkpoint per guild.
type CheckpointStore struct {
	s *Store
}

// Save upserts the guild's checkpoint payload.
func (cs *CheckpointStore) Save(guildID string, payload []byte) error {
	mu := cs.s.guildMu.get(guildID)
	mu.Lock()
	defer mu.Unlock()

	_, err := cs.s.db.Exec(`
		INSERT INTO checkpoints (guild_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		guildID, string(payload), time.Now().Unix())
	return err
}

// Load returns the checkpoint payload and its last update time.
// found is false when no checkpoint exists.
func (cs *CheckpointStore) Load(guildID string) (payload []byte, updatedAt time.Time, found bool, err error) {
	var raw string
	var ts int64
	err = cs.s.db.QueryRow(
		"SELECT payload, updated_at FROM checkpoints WHERE guild_id = ?", guildID,
	).Scan(&raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return []byte(raw), time.Unix(ts, 0), true, nil
}

// Clear removes the guild's checkpoint. Called only on full success or
// when a stale/corrupt checkpoint is discarded.
func (cs *CheckpointStore) Clear(guildID string) error {
	mu := cs.s.guildMu.get(guildID)
	mu.Lock()
	defer mu.Unlock()

	_, err := cs.s.db.Exec("DELETE FROM checkpoints WHERE guild_id = ?", guildID)
	return err
}
