package snapshot

import (
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"guildguard/internal/config"
	"guildguard/internal/discord"
	"guildguard/internal/logging"
	"guildguard/internal/metrics"
	"guildguard/internal/store"
)

// Engine captures guild structure into snapshots and keeps the per-guild
// retention list inside the store's cap.
type Engine struct {
	api   discord.GuildAPI
	snaps *store.SnapshotStore
	cfg   config.Source
	log   *logrus.Entry
}

func NewEngine(api discord.GuildAPI, snaps *store.SnapshotStore, cfg config.Source) *Engine {
	return &Engine{
		api:   api,
		snaps: snaps,
		cfg:   cfg,
		log:   logging.Component("snapshot"),
	}
}

// Capture enumerates the guild's roles, categories and channels into a
// new snapshot. Managed roles and @everyone are excluded. Individual
// resources that cannot be read are skipped, not fatal; only failure to
// enumerate at all aborts the capture.
func (e *Engine) Capture(guildID, name string) (*Snapshot, error) {
	meta, err := e.api.Guild(guildID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   FormatVersion,
		GuildID:   guildID,
		CreatedAt: time.Now(),
		Guild: GuildMeta{
			Name:              meta.Name,
			OwnerID:           meta.OwnerID,
			Description:       meta.Description,
			VerificationLevel: meta.VerificationLevel,
		},
	}

	roles, err := e.api.Roles(guildID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r == nil || r.Managed || r.ID == guildID {
			continue
		}
		snap.Roles = append(snap.Roles, Role{
			ID:          r.ID,
			Name:        r.Name,
			Color:       r.Color,
			Permissions: r.Permissions,
			Hoist:       r.Hoist,
			Mentionable: r.Mentionable,
			Position:    r.Position,
		})
	}
	sort.Slice(snap.Roles, func(i, j int) bool {
		return snap.Roles[i].Position > snap.Roles[j].Position
	})

	channels, err := e.api.Channels(guildID)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		switch ch.Type {
		case discordgo.ChannelTypeGuildCategory:
			snap.Categories = append(snap.Categories, Category{
				ID:         ch.ID,
				Name:       ch.Name,
				Position:   ch.Position,
				Overwrites: captureOverwrites(ch.PermissionOverwrites),
			})
		case discordgo.ChannelTypeGuildPublicThread,
			discordgo.ChannelTypeGuildPrivateThread,
			discordgo.ChannelTypeGuildNewsThread:
			// Threads belong to their parent channel's message history.
			continue
		default:
			snap.Channels = append(snap.Channels, Channel{
				ID:         ch.ID,
				Name:       ch.Name,
				Type:       int(ch.Type),
				ParentID:   ch.ParentID,
				Position:   ch.Position,
				Topic:      ch.Topic,
				Bitrate:    ch.Bitrate,
				UserLimit:  ch.UserLimit,
				NSFW:       ch.NSFW,
				Overwrites: captureOverwrites(ch.PermissionOverwrites),
			})
		}
	}
	sort.Slice(snap.Categories, func(i, j int) bool {
		return snap.Categories[i].Position < snap.Categories[j].Position
	})
	sort.Slice(snap.Channels, func(i, j int) bool {
		return snap.Channels[i].Position < snap.Channels[j].Position
	})

	metrics.Default().IncSnapshots()
	e.log.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"roles":      len(snap.Roles),
		"categories": len(snap.Categories),
		"channels":   len(snap.Channels),
	}).Info("captured guild snapshot")

	return snap, nil
}

// Save persists the snapshot, evicting the oldest beyond the guild's cap.
func (e *Engine) Save(snap *Snapshot) error {
	payload, err := snap.Encode()
	if err != nil {
		return err
	}
	cap := e.cfg.Guard(snap.GuildID).SnapshotCap()
	return e.snaps.Save(store.SnapshotRow{
		ID:        snap.ID,
		GuildID:   snap.GuildID,
		Name:      snap.Name,
		CreatedAt: snap.CreatedAt,
		Payload:   payload,
	}, cap)
}

// CaptureAndSave is Capture followed by Save.
func (e *Engine) CaptureAndSave(guildID, name string) (*Snapshot, error) {
	snap, err := e.Capture(guildID, name)
	if err != nil {
		return nil, err
	}
	if err := e.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Latest returns the most recent snapshot, or nil when none exists.
func (e *Engine) Latest(guildID string) (*Snapshot, error) {
	row, err := e.snaps.Latest(guildID)
	if err != nil || row == nil {
		return nil, err
	}
	return Decode(row.Payload)
}

// Get resolves a snapshot by ID or name.
func (e *Engine) Get(guildID, idOrName string) (*Snapshot, error) {
	row, err := e.snaps.Get(guildID, idOrName)
	if err != nil || row == nil {
		return nil, err
	}
	return Decode(row.Payload)
}

// EnsureFresh guarantees a snapshot no older than maxAge exists,
// capturing one when the latest is missing or stale. Returns the
// snapshot that satisfies the guarantee.
func (e *Engine) EnsureFresh(guildID, name string, maxAge time.Duration) (*Snapshot, error) {
	latest, err := e.Latest(guildID)
	if err == nil && latest != nil && time.Since(latest.CreatedAt) < maxAge {
		return latest, nil
	}
	return e.CaptureAndSave(guildID, name)
}

func captureOverwrites(overwrites []*discordgo.PermissionOverwrite) []Overwrite {
	var out []Overwrite
	for _, ow := range overwrites {
		if ow == nil {
			continue
		}
		kind := TargetRole
		if ow.Type == discordgo.PermissionOverwriteTypeMember {
			kind = TargetMember
		}
		out = append(out, Overwrite{
			TargetID: ow.ID,
			Kind:     kind,
			Allow:    ow.Allow,
			Deny:     ow.Deny,
		})
	}
	return out
}
