package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// GuildMeta is the guild-level metadata captured into snapshots.
type GuildMeta struct {
	ID                string
	Name              string
	OwnerID           string
	Description       string
	VerificationLevel int
	Features          []string
}

// AuditEntry attributes a guild action to the user who performed it.
type AuditEntry struct {
	ID         string
	ActorID    string
	TargetID   string
	Reason     string
	ActionType int
}

// RoleCreate carries the attributes for a role to be created.
type RoleCreate struct {
	Name        string
	Color       int
	Permissions int64
	Hoist       bool
	Mentionable bool
}

// ChannelCreate carries the attributes for a channel or category to be
// created. ParentID may reference a category created earlier in the
// same pass.
type ChannelCreate struct {
	Name       string
	Type       discordgo.ChannelType
	Topic      string
	Bitrate    int
	UserLimit  int
	Position   int
	ParentID   string
	NSFW       bool
	Overwrites []*discordgo.PermissionOverwrite
}

// GuildAPI is the rate-limited guild resource surface the engine
// consumes. Every call is a blocking network operation; implementations
// pace and retry internally, callers classify the returned error.
type GuildAPI interface {
	Guild(guildID string) (*GuildMeta, error)
	Roles(guildID string) ([]*discordgo.Role, error)
	Channels(guildID string) ([]*discordgo.Channel, error)

	CreateRole(guildID string, p RoleCreate) (*discordgo.Role, error)
	DeleteRole(guildID, roleID string) error
	CreateChannel(guildID string, p ChannelCreate) (*discordgo.Channel, error)
	DeleteChannel(channelID string) error
	SetOverwrites(channelID string, overwrites []*discordgo.PermissionOverwrite) error

	TimeoutMember(guildID, userID string, until time.Time) error
	MemberRoles(guildID, userID string) ([]string, error)
	RemoveMemberRoles(guildID, userID string, roleIDs []string) error
	HasMember(guildID, userID string) bool

	// BotTopRolePosition returns the position of the bot's highest role.
	// Deletions skip roles at or above it.
	BotTopRolePosition(guildID string) int

	DisableCommunityFeatures(guildID string) error

	AuditEntry(guildID string, actionType int, targetID string) (*AuditEntry, error)

	SendDM(userID string, embed *discordgo.MessageEmbed) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}
