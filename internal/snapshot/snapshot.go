package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FormatVersion is bumped whenever the snapshot document changes shape.
// Restores against another version are rejected outright.
const FormatVersion = 2

// ErrVersionMismatch rejects a restore against an incompatible format.
var ErrVersionMismatch = errors.New("snapshot format version mismatch")

// TargetKind tags a permission overwrite target.
type TargetKind uint8

const (
	TargetRole TargetKind = iota
	TargetMember
)

func (k TargetKind) String() string {
	if k == TargetMember {
		return "member"
	}
	return "role"
}

// Overwrite is a per-channel permission exception for one role or
// member. Role targets are remapped through the role map at restore
// time; member targets for absent members are dropped.
type Overwrite struct {
	TargetID string     `json:"target_id"`
	Kind     TargetKind `json:"kind"`
	Allow    int64      `json:"allow"`
	Deny     int64      `json:"deny"`
}

// Role captures one role. The original ID is kept so overwrites can be
// remapped to the recreated role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Permissions int64  `json:"permissions"`
	Hoist       bool   `json:"hoist"`
	Mentionable bool   `json:"mentionable"`
	Position    int    `json:"position"`
}

// Category captures one channel category.
type Category struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Position   int         `json:"position"`
	Overwrites []Overwrite `json:"overwrites,omitempty"`
}

// Channel captures one non-category channel. ParentID references the
// captured category it lived under, if any.
type Channel struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       int         `json:"type"`
	ParentID   string      `json:"parent_id,omitempty"`
	Position   int         `json:"position"`
	Topic      string      `json:"topic,omitempty"`
	Bitrate    int         `json:"bitrate,omitempty"`
	UserLimit  int         `json:"user_limit,omitempty"`
	NSFW       bool        `json:"nsfw,omitempty"`
	Overwrites []Overwrite `json:"overwrites,omitempty"`
}

// GuildMeta is the guild-level metadata stored with a snapshot.
type GuildMeta struct {
	Name              string `json:"name"`
	OwnerID           string `json:"owner_id"`
	Description       string `json:"description,omitempty"`
	VerificationLevel int    `json:"verification_level"`
}

// Snapshot is a structural copy of a guild at a point in time.
type Snapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Version    int        `json:"version"`
	GuildID    string     `json:"guild_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Guild      GuildMeta  `json:"guild"`
	Roles      []Role     `json:"roles"`
	Categories []Category `json:"categories"`
	Channels   []Channel  `json:"channels"`
}

func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a snapshot document and enforces the format version.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got v%d, want v%d", ErrVersionMismatch, s.Version, FormatVersion)
	}
	return &s, nil
}
