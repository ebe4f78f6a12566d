package store

import (
	"database/sql"
	"errors"
	"time"
)

// SnapshotRow is one persisted snapshot. The payload is the serialized
// snapshot document; the engine owns its format.
type SnapshotRow struct {
	ID        string
	GuildID   string
	Name      string
	CreatedAt time.Time
	Payload   []byte
}

// SnapshotStore keeps an ordered, capped list of snapshots per guild.
type SnapshotStore struct {
	s *Store
}

// Save appends a snapshot and evicts the oldest rows beyond cap.
func (ss *SnapshotStore) Save(row SnapshotRow, cap int) error {
	mu := ss.s.guildMu.get(row.GuildID)
	mu.Lock()
	defer mu.Unlock()

	_, err := ss.s.db.Exec(
		"INSERT INTO snapshots (id, guild_id, name, created_at, payload) VALUES (?, ?, ?, ?, ?)",
		row.ID, row.GuildID, row.Name, row.CreatedAt.UnixNano(), string(row.Payload))
	if err != nil {
		return err
	}

	if cap <= 0 {
		return nil
	}

	// Oldest first beyond the cap.
	_, err = ss.s.db.Exec(`
		DELETE FROM snapshots WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE guild_id = ? ORDER BY created_at DESC LIMIT ?
		)`, row.GuildID, row.GuildID, cap)
	return err
}

// Latest returns the most recent snapshot for the guild, or nil.
func (ss *SnapshotStore) Latest(guildID string) (*SnapshotRow, error) {
	row := ss.s.db.QueryRow(`
		SELECT id, guild_id, name, created_at, payload FROM snapshots
		WHERE guild_id = ? ORDER BY created_at DESC LIMIT 1`, guildID)
	return scanSnapshot(row)
}

// Get returns the snapshot with the given ID or name, or nil.
func (ss *SnapshotStore) Get(guildID, idOrName string) (*SnapshotRow, error) {
	row := ss.s.db.QueryRow(`
		SELECT id, guild_id, name, created_at, payload FROM snapshots
		WHERE guild_id = ? AND (id = ? OR name = ?)
		ORDER BY created_at DESC LIMIT 1`, guildID, idOrName, idOrName)
	return scanSnapshot(row)
}

// List returns all snapshots for the guild, newest first.
func (ss *SnapshotStore) List(guildID string) ([]SnapshotRow, error) {
	rows, err := ss.s.db.Query(`
		SELECT id, guild_id, name, created_at, payload FROM snapshots
		WHERE guild_id = ? ORDER BY created_at DESC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var createdAt int64
		var payload string
		if err := rows.Scan(&r.ID, &r.GuildID, &r.Name, &createdAt, &payload); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, createdAt)
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSnapshot(row *sql.Row) (*SnapshotRow, error) {
	var r SnapshotRow
	var createdAt int64
	var payload string
	err := row.Scan(&r.ID, &r.GuildID, &r.Name, &createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt)
	r.Payload = []byte(payload)
	return &r, nil
}
