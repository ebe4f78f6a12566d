package bot

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildguard/internal/models"
)

const actorCacheTTL = 5 * time.Second

// actorCache remembers recent audit-log attributions so a burst of
// events does not refetch the audit log for every single one.
type actorCache struct {
	mu      sync.Mutex
	entries map[string]actorCacheEntry
}

type actorCacheEntry struct {
	actorID string
	seenAt  time.Time
}

func newActorCache() *actorCache {
	return &actorCache{entries: make(map[string]actorCacheEntry)}
}

func (c *actorCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.seenAt) > actorCacheTTL {
		return "", false
	}
	return e.actorID, true
}

func (c *actorCache) put(key, actorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = actorCacheEntry{actorID: actorID, seenAt: time.Now()}
	for k, e := range c.entries {
		if time.Since(e.seenAt) > actorCacheTTL {
			delete(c.entries, k)
		}
	}
}

func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onRoleDelete)
	b.session.AddHandler(b.onRoleCreate)
	b.session.AddHandler(b.onBanAdd)
	b.session.AddHandler(b.onMemberRemove)
	b.session.AddHandler(b.onWebhooksUpdate)
}

func (b *Bot) onChannelDelete(_ *discordgo.Session, e *discordgo.ChannelDelete) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionChannelDelete), e.ID, models.ActionDeleteChannels)
}

func (b *Bot) onChannelCreate(_ *discordgo.Session, e *discordgo.ChannelCreate) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionChannelCreate), e.ID, models.ActionCreateChannels)
}

func (b *Bot) onRoleDelete(_ *discordgo.Session, e *discordgo.GuildRoleDelete) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionRoleDelete), e.RoleID, models.ActionDeleteRoles)
}

func (b *Bot) onRoleCreate(_ *discordgo.Session, e *discordgo.GuildRoleCreate) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionRoleCreate), e.Role.ID, models.ActionCreateRoles)
}

func (b *Bot) onBanAdd(_ *discordgo.Session, e *discordgo.GuildBanAdd) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionMemberBanAdd), e.User.ID, models.ActionBanMembers)
}

// onMemberRemove only counts as a kick when the audit log attributes
// one; voluntary leaves produce no matching entry.
func (b *Bot) onMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if b.api == nil {
		return
	}
	entry, err := b.api.AuditEntry(e.GuildID, int(discordgo.AuditLogActionMemberKick), e.User.ID)
	if err != nil || entry == nil {
		return
	}
	b.evaluate(e.GuildID, entry.ActorID, models.ActionKickMembers)
}

func (b *Bot) onWebhooksUpdate(_ *discordgo.Session, e *discordgo.WebhooksUpdate) {
	b.handleAudited(e.GuildID, int(discordgo.AuditLogActionWebhookCreate), "", models.ActionCreateWebhooks)
}

// handleAudited resolves the acting user from the audit log and feeds
// the action into the guard engine. Actions without an attributable
// actor are ignored rather than guessed.
func (b *Bot) handleAudited(guildID string, auditAction int, targetID, actionType string) {
	if b.api == nil || guildID == "" {
		return
	}

	key := guildID + ":" + actionType + ":" + targetID
	actorID, ok := b.actors.get(key)
	if !ok {
		entry, err := b.api.AuditEntry(guildID, auditAction, targetID)
		if err != nil {
			b.log.WithField("guild_id", guildID).WithError(err).Debug("audit log fetch failed")
			return
		}
		if entry == nil {
			return
		}
		actorID = entry.ActorID
		b.actors.put(key, actorID)
	}

	b.evaluate(guildID, actorID, actionType)
}

func (b *Bot) evaluate(guildID, actorID, actionType string) {
	// The engine's own restore/rebuild traffic must never trip it.
	if b.guard == nil || actorID == "" || actorID == b.botUserID() {
		return
	}
	b.guard.Evaluate(guildID, actorID, actionType)
}
