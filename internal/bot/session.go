package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"guildguard/internal/discord"
	"guildguard/internal/guard"
	"guildguard/internal/logging"
)

// Bot owns the gateway session and feeds moderation events into the
// guard engine.
type Bot struct {
	session *discordgo.Session
	guard   *guard.Engine
	api     discord.GuildAPI
	actors  *actorCache
	log     *logrus.Entry
}

func New(token string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildModeration

	return &Bot{
		session: session,
		actors:  newActorCache(),
		log:     logging.Component("bot"),
	}, nil
}

// Session exposes the underlying discordgo session for API clients.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Wire connects the guild API (for audit-log actor attribution) and the
// guard engine. Both are built around this bot's session, so they are
// wired after construction and before Start.
func (b *Bot) Wire(api discord.GuildAPI, g *guard.Engine) {
	b.api = api
	b.guard = g
}

// Start registers handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.registerHandlers()
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	b.log.Info("gateway connected")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) botUserID() string {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}
