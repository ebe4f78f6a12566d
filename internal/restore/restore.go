// Package restore rebuilds a guild's structure from a snapshot. It is a
// long-running, single-flow-per-guild operation: the caller must have
// obtained explicit confirmation before invoking it, and once started
// it runs to completion, collecting per-resource failures instead of
// aborting.
package restore

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"guildguard/internal/confirm"
	"guildguard/internal/discord"
	"guildguard/internal/logging"
	"guildguard/internal/metrics"
	"guildguard/internal/oplock"
	"guildguard/internal/snapshot"
	"guildguard/internal/watchdog"
)

// Report lists what a restore managed to rebuild and every resource it
// had to skip.
type Report struct {
	EmergencySnapshotID string
	ChannelsDeleted     int
	RolesDeleted        int
	RolesRestored       int
	CategoriesRestored  int
	ChannelsRestored    int
	Errors              []string
}

type Engine struct {
	api   discord.GuildAPI
	snaps *snapshot.Engine
	locks *oplock.Locks
	gate  *confirm.Gate
	dog   *watchdog.Watchdog
	log   *logrus.Entry
}

// NewEngine builds a restore engine. A nil gate disables the
// confirmation precondition, for callers that enforce it themselves.
func NewEngine(api discord.GuildAPI, snaps *snapshot.Engine, locks *oplock.Locks, gate *confirm.Gate, dog *watchdog.Watchdog) *Engine {
	return &Engine{
		api:   api,
		snaps: snaps,
		locks: locks,
		gate:  gate,
		dog:   dog,
		log:   logging.Component("restore"),
	}
}

// Restore deletes the guild's current destructible structure and
// recreates the snapshot's roles, categories and channels in that
// order. An emergency snapshot of the current state must succeed before
// anything is deleted; if it fails the restore aborts untouched.
func (e *Engine) Restore(guildID string, snap *snapshot.Snapshot) (*Report, error) {
	if snap.Version != snapshot.FormatVersion {
		return nil, fmt.Errorf("%w: got v%d, want v%d", snapshot.ErrVersionMismatch, snap.Version, snapshot.FormatVersion)
	}

	if err := e.locks.Acquire(guildID, "restore"); err != nil {
		return nil, err
	}
	defer e.locks.Release(guildID)

	if e.gate != nil {
		if err := e.gate.Consume(guildID, "restore"); err != nil {
			return nil, err
		}
	}

	emergency, err := e.snaps.CaptureAndSave(guildID, "pre-restore-emergency")
	if err != nil {
		return nil, fmt.Errorf("emergency snapshot failed, restore aborted: %w", err)
	}

	report := &Report{EmergencySnapshotID: emergency.ID}

	e.deleteChannels(guildID, report)
	e.deleteRoles(guildID, report)

	roleMap := e.createRoles(guildID, snap, report)
	catMap := e.createCategories(guildID, snap, roleMap, report)
	e.createChannels(guildID, snap, roleMap, catMap, report)

	metrics.Default().IncRestores()
	e.log.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"roles":      report.RolesRestored,
		"categories": report.CategoriesRestored,
		"channels":   report.ChannelsRestored,
		"errors":     len(report.Errors),
	}).Info("restore finished")

	return report, nil
}

func (e *Engine) heartbeat() {
	if e.dog != nil {
		e.dog.Heartbeat("restore")
	}
}

// deleteChannels removes non-category channels first so categories are
// empty when their turn comes.
func (e *Engine) deleteChannels(guildID string, report *Report) {
	channels, err := e.api.Channels(guildID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list channels: %v", err))
		return
	}

	var categories []*discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			categories = append(categories, ch)
			continue
		}
		e.deleteChannel(ch, report)
	}
	for _, ch := range categories {
		e.deleteChannel(ch, report)
	}
}

func (e *Engine) deleteChannel(ch *discordgo.Channel, report *Report) {
	e.heartbeat()
	err := e.api.DeleteChannel(ch.ID)
	switch {
	case err == nil, discord.Classify(err) == discord.ClassNotFound:
		report.ChannelsDeleted++
	default:
		report.Errors = append(report.Errors, fmt.Sprintf("delete channel %s: %v", ch.Name, err))
	}
}

func (e *Engine) deleteRoles(guildID string, report *Report) {
	roles, err := e.api.Roles(guildID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list roles: %v", err))
		return
	}

	topPos := e.api.BotTopRolePosition(guildID)
	for _, r := range roles {
		if r.ID == guildID || r.Managed || r.Position >= topPos {
			continue
		}
		e.heartbeat()
		err := e.api.DeleteRole(guildID, r.ID)
		switch {
		case err == nil, discord.Classify(err) == discord.ClassNotFound:
			report.RolesDeleted++
		default:
			report.Errors = append(report.Errors, fmt.Sprintf("delete role %s: %v", r.Name, err))
		}
	}
}

// createRoles recreates snapshot roles in their original relative order
// (highest first) and returns the old-ID to new-ID map used to remap
// overwrites.
func (e *Engine) createRoles(guildID string, snap *snapshot.Snapshot, report *Report) map[string]string {
	roleMap := make(map[string]string, len(snap.Roles))
	for _, r := range snap.Roles {
		e.heartbeat()
		created, err := e.api.CreateRole(guildID, discord.RoleCreate{
			Name:        r.Name,
			Color:       r.Color,
			Permissions: r.Permissions,
			Hoist:       r.Hoist,
			Mentionable: r.Mentionable,
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("create role %s: %v", r.Name, err))
			continue
		}
		roleMap[r.ID] = created.ID
		report.RolesRestored++
	}
	return roleMap
}

func (e *Engine) createCategories(guildID string, snap *snapshot.Snapshot, roleMap map[string]string, report *Report) map[string]string {
	catMap := make(map[string]string, len(snap.Categories))
	for _, c := range snap.Categories {
		e.heartbeat()
		created, err := e.api.CreateChannel(guildID, discord.ChannelCreate{
			Name:       c.Name,
			Type:       discordgo.ChannelTypeGuildCategory,
			Position:   c.Position,
			Overwrites: e.remapOverwrites(guildID, c.Overwrites, roleMap),
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("create category %s: %v", c.Name, err))
			continue
		}
		catMap[c.ID] = created.ID
		report.CategoriesRestored++
	}
	return catMap
}

func (e *Engine) createChannels(guildID string, snap *snapshot.Snapshot, roleMap, catMap map[string]string, report *Report) {
	for _, ch := range snap.Channels {
		e.heartbeat()
		_, err := e.api.CreateChannel(guildID, discord.ChannelCreate{
			Name:       ch.Name,
			Type:       discordgo.ChannelType(ch.Type),
			Topic:      ch.Topic,
			Bitrate:    ch.Bitrate,
			UserLimit:  ch.UserLimit,
			Position:   ch.Position,
			ParentID:   catMap[ch.ParentID],
			NSFW:       ch.NSFW,
			Overwrites: e.remapOverwrites(guildID, ch.Overwrites, roleMap),
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("create channel %s: %v", ch.Name, err))
			continue
		}
		report.ChannelsRestored++
	}
}

// remapOverwrites translates snapshot overwrite targets into the newly
// created resources. Role targets go through the role map (@everyone,
// whose ID equals the guild ID, passes through); member targets for
// members no longer present are dropped.
func (e *Engine) remapOverwrites(guildID string, overwrites []snapshot.Overwrite, roleMap map[string]string) []*discordgo.PermissionOverwrite {
	var out []*discordgo.PermissionOverwrite
	for _, ow := range overwrites {
		switch ow.Kind {
		case snapshot.TargetRole:
			targetID := ow.TargetID
			if targetID != guildID {
				mapped, ok := roleMap[targetID]
				if !ok {
					continue
				}
				targetID = mapped
			}
			out = append(out, &discordgo.PermissionOverwrite{
				ID:    targetID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: ow.Allow,
				Deny:  ow.Deny,
			})
		case snapshot.TargetMember:
			if !e.api.HasMember(guildID, ow.TargetID) {
				continue
			}
			out = append(out, &discordgo.PermissionOverwrite{
				ID:    ow.TargetID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: ow.Allow,
				Deny:  ow.Deny,
			})
		}
	}
	return out
}
