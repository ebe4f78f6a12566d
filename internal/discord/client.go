package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"guildguard/internal/logging"
	"guildguard/internal/metrics"
)

const maxTransientRetries = 3

// Client implements GuildAPI on top of a discordgo session. Mutating
// calls share one pacer so bulk delete/create loops never hammer the
// API, and transient failures are retried with exponential backoff.
type Client struct {
	s    *discordgo.Session
	pace *rate.Limiter
	log  *logrus.Entry
}

func NewClient(s *discordgo.Session, paceInterval time.Duration) *Client {
	return &Client{
		s:    s,
		pace: rate.NewLimiter(rate.Every(paceInterval), 1),
		log:  logging.Component("discord"),
	}
}

// withRetry retries transient failures and returns every other error
// unchanged for the caller to classify.
func (c *Client) withRetry(op string, fn func() error) error {
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxTransientRetries)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if Classify(err) == ClassTransient {
			metrics.Default().IncAPIRetries()
			c.log.WithField("op", op).WithError(err).Warn("transient API error, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// paced blocks until the mutation pacer allows the next call.
func (c *Client) paced(op string, fn func() error) error {
	c.pace.Wait(context.Background())
	return c.withRetry(op, fn)
}

func (c *Client) Guild(guildID string) (*GuildMeta, error) {
	var g *discordgo.Guild
	err := c.withRetry("guild", func() error {
		var err error
		g, err = c.s.Guild(guildID)
		return err
	})
	if err != nil {
		return nil, err
	}

	features := make([]string, 0, len(g.Features))
	for _, f := range g.Features {
		features = append(features, string(f))
	}

	return &GuildMeta{
		ID:                g.ID,
		Name:              g.Name,
		OwnerID:           g.OwnerID,
		Description:       g.Description,
		VerificationLevel: int(g.VerificationLevel),
		Features:          features,
	}, nil
}

func (c *Client) Roles(guildID string) ([]*discordgo.Role, error) {
	var roles []*discordgo.Role
	err := c.withRetry("roles", func() error {
		var err error
		roles, err = c.s.GuildRoles(guildID)
		return err
	})
	return roles, err
}

func (c *Client) Channels(guildID string) ([]*discordgo.Channel, error) {
	var channels []*discordgo.Channel
	err := c.withRetry("channels", func() error {
		var err error
		channels, err = c.s.GuildChannels(guildID)
		return err
	})
	return channels, err
}

func (c *Client) CreateRole(guildID string, p RoleCreate) (*discordgo.Role, error) {
	params := &discordgo.RoleParams{
		Name:        p.Name,
		Color:       &p.Color,
		Hoist:       &p.Hoist,
		Permissions: &p.Permissions,
		Mentionable: &p.Mentionable,
	}

	var role *discordgo.Role
	err := c.paced("create_role", func() error {
		var err error
		role, err = c.s.GuildRoleCreate(guildID, params)
		return err
	})
	return role, err
}

func (c *Client) DeleteRole(guildID, roleID string) error {
	return c.paced("delete_role", func() error {
		return c.s.GuildRoleDelete(guildID, roleID)
	})
}

func (c *Client) CreateChannel(guildID string, p ChannelCreate) (*discordgo.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 p.Name,
		Type:                 p.Type,
		Topic:                p.Topic,
		Bitrate:              p.Bitrate,
		UserLimit:            p.UserLimit,
		Position:             p.Position,
		ParentID:             p.ParentID,
		NSFW:                 p.NSFW,
		PermissionOverwrites: p.Overwrites,
	}

	var ch *discordgo.Channel
	err := c.paced("create_channel", func() error {
		var err error
		ch, err = c.s.GuildChannelCreateComplex(guildID, data)
		return err
	})
	return ch, err
}

func (c *Client) DeleteChannel(channelID string) error {
	return c.paced("delete_channel", func() error {
		_, err := c.s.ChannelDelete(channelID)
		return err
	})
}

func (c *Client) SetOverwrites(channelID string, overwrites []*discordgo.PermissionOverwrite) error {
	return c.paced("set_overwrites", func() error {
		_, err := c.s.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
			PermissionOverwrites: overwrites,
		})
		return err
	})
}

func (c *Client) TimeoutMember(guildID, userID string, until time.Time) error {
	return c.paced("timeout_member", func() error {
		return c.s.GuildMemberTimeout(guildID, userID, &until)
	})
}

func (c *Client) MemberRoles(guildID, userID string) ([]string, error) {
	var member *discordgo.Member
	err := c.withRetry("member_roles", func() error {
		var err error
		member, err = c.s.GuildMember(guildID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member.Roles, nil
}

func (c *Client) RemoveMemberRoles(guildID, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		id := roleID
		if err := c.paced("remove_member_role", func() error {
			return c.s.GuildMemberRoleRemove(guildID, userID, id)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) HasMember(guildID, userID string) bool {
	_, err := c.s.GuildMember(guildID, userID)
	return err == nil
}

func (c *Client) BotTopRolePosition(guildID string) int {
	if c.s.State == nil || c.s.State.User == nil {
		return 0
	}

	member, err := c.s.GuildMember(guildID, c.s.State.User.ID)
	if err != nil {
		// Unknown hierarchy: report 0 so deletion loops skip everything
		// rather than touch roles above the bot.
		return 0
	}

	roles, err := c.s.GuildRoles(guildID)
	if err != nil {
		return 0
	}

	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	top := 0
	for _, id := range member.Roles {
		if r, ok := byID[id]; ok && r.Position > top {
			top = r.Position
		}
	}
	return top
}

func (c *Client) DisableCommunityFeatures(guildID string) error {
	g, err := c.s.Guild(guildID)
	if err != nil {
		return err
	}

	kept := make([]discordgo.GuildFeature, 0, len(g.Features))
	hadCommunity := false
	for _, f := range g.Features {
		if f == discordgo.GuildFeatureCommunity {
			hadCommunity = true
			continue
		}
		kept = append(kept, f)
	}
	if !hadCommunity {
		return nil
	}

	return c.paced("disable_community", func() error {
		_, err := c.s.GuildEdit(guildID, &discordgo.GuildParams{Features: kept})
		return err
	})
}

func (c *Client) AuditEntry(guildID string, actionType int, targetID string) (*AuditEntry, error) {
	var log *discordgo.GuildAuditLog
	err := c.withRetry("audit_log", func() error {
		var err error
		log, err = c.s.GuildAuditLog(guildID, "", "", actionType, 10)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range log.AuditLogEntries {
		if targetID != "" && entry.TargetID != targetID {
			continue
		}
		at := actionType
		if entry.ActionType != nil {
			at = int(*entry.ActionType)
		}
		return &AuditEntry{
			ID:         entry.ID,
			ActorID:    entry.UserID,
			TargetID:   entry.TargetID,
			Reason:     entry.Reason,
			ActionType: at,
		}, nil
	}
	return nil, nil
}

func (c *Client) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	ch, err := c.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = c.s.ChannelMessageSendEmbed(ch.ID, embed)
	return err
}

func (c *Client) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := c.s.ChannelMessageSendEmbed(channelID, embed)
	return err
}
