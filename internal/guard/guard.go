// Package guard decides, per recorded action, whether a user's burst of
// destructive activity warrants an owner alert or automated mitigation.
package guard

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"guildguard/internal/alert"
	"guildguard/internal/config"
	"guildguard/internal/discord"
	"guildguard/internal/logging"
	"guildguard/internal/metrics"
	"guildguard/internal/snapshot"
	"guildguard/internal/tracker"
)

// dangerousPerms is the permission mask that marks a role worth
// stripping during mitigation. Membership is evaluated against the
// member's role set at mitigation time, since removal acts on the roles
// the member holds right now.
const dangerousPerms = discordgo.PermissionAdministrator |
	discordgo.PermissionManageServer |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageRoles |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers

// Step is one mitigation sub-step outcome. Sub-steps are independently
// error-isolated; one failing never blocks the rest.
type Step struct {
	Name string
	OK   bool
	Err  string
}

// Result aggregates an evaluation: the window count, whether an alert
// fired, and which mitigation sub-steps succeeded.
type Result struct {
	GuildID     string
	UserID      string
	ActionType  string
	Count       int
	Whitelisted bool
	Alerted     bool
	Mitigated   bool
	Steps       []Step
}

// Engine wires the tracker, throttler, notifier and snapshot engine
// into the detection pipeline.
type Engine struct {
	cfg      config.Source
	api      discord.GuildAPI
	track    *tracker.Tracker
	throttle *alert.Throttler
	notify   *alert.Notifier
	snaps    *snapshot.Engine
	raidMin  int
	timeout  time.Duration
	log      *logrus.Entry
}

func NewEngine(
	cfg config.Source,
	api discord.GuildAPI,
	track *tracker.Tracker,
	throttle *alert.Throttler,
	notify *alert.Notifier,
	snaps *snapshot.Engine,
	raidThreshold int,
	timeout time.Duration,
) *Engine {
	return &Engine{
		cfg:      cfg,
		api:      api,
		track:    track,
		throttle: throttle,
		notify:   notify,
		snaps:    snaps,
		raidMin:  raidThreshold,
		timeout:  timeout,
		log:      logging.Component("guard"),
	}
}

// Evaluate records the action and applies the decision logic: alert the
// owner once the raid threshold is reached, mitigate once a
// non-whitelisted user crosses the configured action limit. Returns nil
// when protection is disabled for the guild.
func (e *Engine) Evaluate(guildID, userID, actionType string) *Result {
	cfg := e.cfg.Guard(guildID)
	if !cfg.Enabled {
		return nil
	}

	now := time.Now()
	count := e.track.Record(guildID, userID, actionType, now)
	metrics.Default().IncEventsRecorded()

	res := &Result{
		GuildID:     guildID,
		UserID:      userID,
		ActionType:  actionType,
		Count:       count,
		Whitelisted: cfg.IsWhitelisted(userID),
	}

	if count >= e.raidMin && e.throttle.ShouldNotify(guildID, now) {
		recent := e.track.Recent(guildID, userID, 10)
		embed := alert.RaidEmbed(guildID, userID, count, res.Whitelisted, recent)
		if err := e.notify.NotifyOwner(guildID, embed); err != nil {
			e.log.WithField("guild_id", guildID).WithError(err).Warn("raid alert delivery failed")
		} else {
			res.Alerted = true
			metrics.Default().IncAlertsSent()
			if err := e.throttle.MarkNotified(guildID, now); err != nil {
				e.log.WithField("guild_id", guildID).WithError(err).Warn("failed to record alert state")
			}
		}
	}

	if !res.Whitelisted && count >= cfg.MaxActions {
		e.mitigate(cfg, res, now)
	}

	if res.Mitigated {
		e.log.WithFields(logrus.Fields{
			"guild_id": guildID,
			"user_id":  userID,
			"action":   actionType,
			"count":    count,
		}).Warn("mitigation executed")
	}

	return res
}

// mitigate runs every protective sub-step, collecting outcomes instead
// of stopping at the first failure.
func (e *Engine) mitigate(cfg *config.GuardConfig, res *Result, now time.Time) {
	res.Mitigated = true
	metrics.Default().IncMitigations()

	res.record("strip_roles", e.stripDangerousRoles(res.GuildID, res.UserID))
	res.record("timeout", e.api.TimeoutMember(res.GuildID, res.UserID, now.Add(e.timeout)))
	res.record("snapshot", e.ensureSnapshot(cfg))

	embed := alert.MitigationEmbed(res.GuildID, res.UserID, res.ActionType, res.Count, res.succeededSteps())
	res.record("log_channel", e.notify.SendLog(res.GuildID, embed))

	// Confirmed trigger: the owner hears about it even inside the
	// normal alert cooldown.
	notifyErr := e.notify.NotifyOwner(res.GuildID, embed)
	res.record("owner_notify", notifyErr)
	if notifyErr == nil {
		if err := e.throttle.MarkNotified(res.GuildID, now); err != nil {
			e.log.WithField("guild_id", res.GuildID).WithError(err).Warn("failed to record alert state")
		}
	}
}

func (e *Engine) stripDangerousRoles(guildID, userID string) error {
	memberRoles, err := e.api.MemberRoles(guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to read member roles: %w", err)
	}

	roles, err := e.api.Roles(guildID)
	if err != nil {
		return fmt.Errorf("failed to list guild roles: %w", err)
	}
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	var strip []string
	for _, id := range memberRoles {
		if r, ok := byID[id]; ok && r.Permissions&dangerousPerms != 0 {
			strip = append(strip, id)
		}
	}
	if len(strip) == 0 {
		return nil
	}
	return e.api.RemoveMemberRoles(guildID, userID, strip)
}

func (e *Engine) ensureSnapshot(cfg *config.GuardConfig) error {
	if !cfg.BackupEnabled {
		return nil
	}
	_, err := e.snaps.EnsureFresh(cfg.GuildID, "auto-mitigation", cfg.BackupInterval())
	return err
}

func (r *Result) record(name string, err error) {
	step := Step{Name: name, OK: err == nil}
	if err != nil {
		step.Err = err.Error()
	}
	r.Steps = append(r.Steps, step)
}

func (r *Result) succeededSteps() []string {
	var out []string
	for _, s := range r.Steps {
		if s.OK {
			out = append(out, s.Name)
		}
	}
	return out
}
