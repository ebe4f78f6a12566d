// Package rebuild drives the destructive guild rebuild workflow: a
// persisted, resumable state machine that tears down and recreates a
// guild's structure from a target layout. Once started it runs to
// completion or crashes and is resumed from its checkpoint; mid-flight
// cancellation is deliberately unsupported.
package rebuild

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"guildguard/internal/alert"
	"guildguard/internal/confirm"
	"guildguard/internal/discord"
	"guildguard/internal/logging"
	"guildguard/internal/metrics"
	"guildguard/internal/oplock"
	"guildguard/internal/store"
	"guildguard/internal/watchdog"
)

// RoleSpec describes one role of the target layout, highest first.
type RoleSpec struct {
	Name        string
	Color       int
	Permissions int64
	Hoist       bool
	Mentionable bool
}

// ChannelSpec describes one channel inside a category.
type ChannelSpec struct {
	Name  string
	Type  int
	Topic string
}

// CategorySpec describes one category and its channels in order.
type CategorySpec struct {
	Name     string
	Channels []ChannelSpec
}

// Layout is the target structure a rebuild creates.
type Layout struct {
	Roles      []RoleSpec
	Categories []CategorySpec
}

// Report summarizes one rebuild run.
type Report struct {
	Resumed           bool
	ResumedPhase      Phase
	ChannelsDeleted   int
	RolesDeleted      int
	RolesCreated      int
	CategoriesCreated int
	ChannelsCreated   int
	Errors            []string
}

type Workflow struct {
	api             discord.GuildAPI
	checkpoints     *store.CheckpointStore
	locks           *oplock.Locks
	notify          *alert.Notifier
	gate            *confirm.Gate
	dog             *watchdog.Watchdog
	staleAfter      time.Duration
	checkpointEvery int
	log             *logrus.Entry
}

// NewWorkflow builds a rebuild workflow. A nil gate disables the
// confirmation precondition, for callers that enforce it themselves.
func NewWorkflow(
	api discord.GuildAPI,
	checkpoints *store.CheckpointStore,
	locks *oplock.Locks,
	notify *alert.Notifier,
	gate *confirm.Gate,
	dog *watchdog.Watchdog,
	staleAfter time.Duration,
	checkpointEvery int,
) *Workflow {
	if checkpointEvery <= 0 {
		checkpointEvery = 5
	}
	return &Workflow{
		api:             api,
		checkpoints:     checkpoints,
		locks:           locks,
		notify:          notify,
		gate:            gate,
		dog:             dog,
		staleAfter:      staleAfter,
		checkpointEvery: checkpointEvery,
		log:             logging.Component("rebuild"),
	}
}

// Run executes (or resumes) the rebuild for the guild. Per-resource
// failures are collected and never abort a phase; failure to persist a
// checkpoint is fatal and leaves the guild at its last checkpointed
// step for a later resume.
func (w *Workflow) Run(guildID string, layout Layout) (*Report, error) {
	if err := w.locks.Acquire(guildID, "rebuild"); err != nil {
		return nil, err
	}
	defer w.locks.Release(guildID)

	report := &Report{}
	progress := w.loadOrStart(guildID, layout, report)

	// A resumed run was confirmed when it first started; only a fresh
	// run consumes a confirmation.
	if !report.Resumed && w.gate != nil {
		if err := w.gate.Consume(guildID, "rebuild"); err != nil {
			return nil, err
		}
	}

	for progress.Phase != PhaseDone {
		if err := w.step(progress, layout, report); err != nil {
			return report, err
		}
	}

	if err := w.checkpoints.Clear(guildID); err != nil {
		return report, fmt.Errorf("rebuild finished but checkpoint not cleared: %w", err)
	}

	metrics.Default().IncRebuilds()
	w.log.WithFields(logrus.Fields{
		"guild_id": guildID,
		"roles":    report.RolesCreated,
		"channels": report.ChannelsCreated,
		"errors":   len(report.Errors),
	}).Info("rebuild complete")

	return report, nil
}

// step performs the work that moves the workflow out of its current
// phase, then advances the checkpoint.
func (w *Workflow) step(p *Progress, layout Layout, report *Report) error {
	w.beat()

	var err error
	switch p.Phase {
	case PhaseStart:
		if cerr := w.api.DisableCommunityFeatures(p.GuildID); cerr != nil {
			// Not every guild has community enabled and not every bot
			// may edit it; the rebuild proceeds either way.
			report.Errors = append(report.Errors, fmt.Sprintf("disable community features: %v", cerr))
		}
	case PhaseCommunityDisabled:
		err = w.deletePhaseChannels(p, report)
	case PhaseChannelsDeleted:
		err = w.deletePhaseRoles(p, report)
	case PhaseRolesDeleted:
		err = w.createPhaseRoles(p, layout, report)
	case PhaseRolesCreated:
		err = w.createPhaseChannels(p, layout, report)
	case PhaseChannelsCreated:
		// All structural work is done; the final transition just seals
		// the checkpoint so Run can clear it.
	default:
		return fmt.Errorf("no action defined for phase %s", p.Phase)
	}
	if err != nil {
		return err
	}

	next, ok := p.Phase.Next()
	if !ok || !ValidTransition(p.Phase, next) {
		return fmt.Errorf("illegal transition from phase %s", p.Phase)
	}
	p.Phase = next
	return w.save(p)
}

func (w *Workflow) loadOrStart(guildID string, layout Layout, report *Report) *Progress {
	payload, updatedAt, found, err := w.checkpoints.Load(guildID)
	if err != nil || !found {
		return newProgress(guildID, layout)
	}

	progress, derr := decodeProgress(guildID, payload)
	if derr != nil {
		w.discard(guildID, fmt.Sprintf("checkpoint unreadable: %v", derr))
		return newProgress(guildID, layout)
	}

	if time.Since(updatedAt) > w.staleAfter {
		w.discard(guildID, fmt.Sprintf("checkpoint stale (last update %s, phase %s)",
			updatedAt.Format(time.RFC3339), progress.Phase))
		return newProgress(guildID, layout)
	}

	report.Resumed = true
	report.ResumedPhase = progress.Phase
	w.log.WithFields(logrus.Fields{
		"guild_id": guildID,
		"phase":    progress.Phase.String(),
	}).Info("resuming rebuild from checkpoint")
	return progress
}

// discard drops an unusable checkpoint, but never silently: a partially
// rebuilt guild is flagged to the operator before restarting.
func (w *Workflow) discard(guildID, reason string) {
	w.log.WithFields(logrus.Fields{
		"guild_id": guildID,
		"reason":   reason,
	}).Warn("discarding rebuild checkpoint, starting fresh")

	if w.notify != nil {
		embed := alert.WorkflowEmbed("⚠️ Partial Rebuild Detected",
			fmt.Sprintf("A previous rebuild left an unusable checkpoint (%s). The rebuild is restarting from scratch.", reason))
		if err := w.notify.NotifyOwner(guildID, embed); err != nil {
			w.log.WithField("guild_id", guildID).WithError(err).Warn("failed to flag partial rebuild")
		}
	}

	if err := w.checkpoints.Clear(guildID); err != nil {
		w.log.WithField("guild_id", guildID).WithError(err).Warn("failed to clear discarded checkpoint")
	}
}

func (w *Workflow) save(p *Progress) error {
	payload, err := p.encode()
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := w.checkpoints.Save(p.GuildID, payload); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

func (w *Workflow) beat() {
	if w.dog != nil {
		w.dog.Heartbeat("rebuild")
	}
}

func (w *Workflow) deletePhaseChannels(p *Progress, report *Report) error {
	channels, err := w.api.Channels(p.GuildID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list channels: %v", err))
		return nil
	}

	// Non-category channels first so categories are empty when deleted.
	ordered := make([]*discordgo.Channel, 0, len(channels))
	var categories []*discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			categories = append(categories, ch)
		} else {
			ordered = append(ordered, ch)
		}
	}
	ordered = append(ordered, categories...)

	ops := 0
	for _, ch := range ordered {
		w.beat()
		err := w.api.DeleteChannel(ch.ID)
		switch {
		case err == nil, discord.Classify(err) == discord.ClassNotFound:
			p.DeletedChannels++
			report.ChannelsDeleted++
		default:
			report.Errors = append(report.Errors, fmt.Sprintf("delete channel %s: %v", ch.Name, err))
		}
		ops++
		if ops%w.checkpointEvery == 0 {
			if err := w.save(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Workflow) deletePhaseRoles(p *Progress, report *Report) error {
	roles, err := w.api.Roles(p.GuildID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list roles: %v", err))
		return nil
	}

	topPos := w.api.BotTopRolePosition(p.GuildID)
	ops := 0
	for _, r := range roles {
		if r.ID == p.GuildID || r.Managed || r.Position >= topPos {
			continue
		}
		w.beat()
		err := w.api.DeleteRole(p.GuildID, r.ID)
		switch {
		case err == nil, discord.Classify(err) == discord.ClassNotFound:
			p.DeletedRoles++
			report.RolesDeleted++
		default:
			report.Errors = append(report.Errors, fmt.Sprintf("delete role %s: %v", r.Name, err))
		}
		ops++
		if ops%w.checkpointEvery == 0 {
			if err := w.save(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// createPhaseRoles creates the layout's roles, reusing any same-named
// role left behind by a prior partial run so nothing is duplicated.
func (w *Workflow) createPhaseRoles(p *Progress, layout Layout, report *Report) error {
	existing := make(map[string]string)
	if roles, err := w.api.Roles(p.GuildID); err == nil {
		for _, r := range roles {
			if r.ID == p.GuildID || r.Managed {
				continue
			}
			if _, ok := existing[r.Name]; !ok {
				existing[r.Name] = r.ID
			}
		}
	}

	ops := 0
	for _, spec := range layout.Roles {
		if _, done := p.CreatedRoles[spec.Name]; done {
			continue
		}
		w.beat()

		if id, ok := existing[spec.Name]; ok {
			p.CreatedRoles[spec.Name] = id
			report.RolesCreated++
		} else {
			created, err := w.api.CreateRole(p.GuildID, discord.RoleCreate{
				Name:        spec.Name,
				Color:       spec.Color,
				Permissions: spec.Permissions,
				Hoist:       spec.Hoist,
				Mentionable: spec.Mentionable,
			})
			if discord.IsCapacityLimit(err) {
				w.log.WithField("guild_id", p.GuildID).Warn("role limit reached, ending role phase")
				break
			}
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("create role %s: %v", spec.Name, err))
				continue
			}
			p.CreatedRoles[spec.Name] = created.ID
			report.RolesCreated++
		}

		ops++
		if ops%w.checkpointEvery == 0 {
			if err := w.save(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// createPhaseChannels walks categories and their channels from the
// checkpointed sub-indices, reusing same-named survivors of a prior
// partial run.
func (w *Workflow) createPhaseChannels(p *Progress, layout Layout, report *Report) error {
	catByName := make(map[string]string)
	chanByKey := make(map[string]string)
	if channels, err := w.api.Channels(p.GuildID); err == nil {
		for _, ch := range channels {
			if ch.Type == discordgo.ChannelTypeGuildCategory {
				if _, ok := catByName[ch.Name]; !ok {
					catByName[ch.Name] = ch.ID
				}
			} else {
				key := ch.ParentID + "/" + ch.Name
				if _, ok := chanByKey[key]; !ok {
					chanByKey[key] = ch.ID
				}
			}
		}
	}

	startCat := p.CategoryIndex
	startChan := p.ChannelIndex
	ops := 0

	for ci := startCat; ci < len(layout.Categories); ci++ {
		cat := layout.Categories[ci]

		catID, ok := p.CreatedCategories[cat.Name]
		if !ok {
			w.beat()
			if id, exists := catByName[cat.Name]; exists {
				catID = id
			} else {
				created, err := w.api.CreateChannel(p.GuildID, discord.ChannelCreate{
					Name: cat.Name,
					Type: discordgo.ChannelTypeGuildCategory,
				})
				if discord.IsCapacityLimit(err) {
					w.log.WithField("guild_id", p.GuildID).Warn("channel limit reached, ending channel phase")
					return w.save(p)
				}
				if err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("create category %s: %v", cat.Name, err))
					continue
				}
				catID = created.ID
			}
			p.CreatedCategories[cat.Name] = catID
			report.CategoriesCreated++
		}

		first := 0
		if ci == startCat {
			first = startChan
		}
		for chI := first; chI < len(cat.Channels); chI++ {
			spec := cat.Channels[chI]
			key := cat.Name + "/" + spec.Name

			p.CategoryIndex = ci
			p.ChannelIndex = chI + 1

			if _, done := p.CreatedChannels[key]; done {
				continue
			}
			w.beat()

			if id, exists := chanByKey[catID+"/"+spec.Name]; exists {
				p.CreatedChannels[key] = id
				report.ChannelsCreated++
			} else {
				created, err := w.api.CreateChannel(p.GuildID, discord.ChannelCreate{
					Name:     spec.Name,
					Type:     discordgo.ChannelType(spec.Type),
					Topic:    spec.Topic,
					ParentID: catID,
				})
				if discord.IsCapacityLimit(err) {
					w.log.WithField("guild_id", p.GuildID).Warn("channel limit reached, ending channel phase")
					return w.save(p)
				}
				if err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("create channel %s: %v", spec.Name, err))
					continue
				}
				p.CreatedChannels[key] = created.ID
				report.ChannelsCreated++
			}

			ops++
			if ops%w.checkpointEvery == 0 {
				if err := w.save(p); err != nil {
					return err
				}
			}
		}

		p.CategoryIndex = ci + 1
		p.ChannelIndex = 0
	}
	return nil
}
