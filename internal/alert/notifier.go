package alert

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"guildguard/internal/config"
	"guildguard/internal/discord"
	"guildguard/internal/logging"
	"guildguard/internal/models"
)

const embedColorRed = 0xED4245

// Notifier delivers alerts to the guild owner, falling back to the
// configured log channel when the DM cannot be delivered.
type Notifier struct {
	api discord.GuildAPI
	cfg config.Source
	log *logrus.Entry
}

func NewNotifier(api discord.GuildAPI, cfg config.Source) *Notifier {
	return &Notifier{
		api: api,
		cfg: cfg,
		log: logging.Component("notifier"),
	}
}

// NotifyOwner DMs the guild owner. On DM failure the embed goes to the
// guild's log channel instead.
func (n *Notifier) NotifyOwner(guildID string, embed *discordgo.MessageEmbed) error {
	meta, err := n.api.Guild(guildID)
	if err != nil {
		return fmt.Errorf("failed to resolve guild owner: %w", err)
	}

	if err := n.api.SendDM(meta.OwnerID, embed); err != nil {
		n.log.WithFields(logrus.Fields{
			"guild_id": guildID,
			"owner_id": meta.OwnerID,
		}).WithError(err).Warn("owner DM failed, falling back to log channel")
		return n.SendLog(guildID, embed)
	}
	return nil
}

// SendLog posts the embed to the guild's configured log channel.
func (n *Notifier) SendLog(guildID string, embed *discordgo.MessageEmbed) error {
	channelID := n.cfg.Guard(guildID).LogChannelID
	if channelID == "" {
		return fmt.Errorf("no log channel configured for guild %s", guildID)
	}
	return n.api.SendEmbed(channelID, embed)
}

// RaidEmbed summarizes suspicious activity for the owner.
func RaidEmbed(guildID, userID string, count int, whitelisted bool, recent []models.ActionEvent) *discordgo.MessageEmbed {
	summary := ""
	for _, ev := range recent {
		summary += fmt.Sprintf("• %s <t:%d:T>\n", models.ActionDisplayName(ev.Type), ev.Timestamp.Unix())
	}
	if summary == "" {
		summary = "no recent actions recorded"
	}

	status := "No"
	if whitelisted {
		status = "Yes (mitigation exempt)"
	}

	return &discordgo.MessageEmbed{
		Title:       "⚠️ Suspicious Activity Detected",
		Color:       embedColorRed,
		Description: fmt.Sprintf("<@%s> performed **%d** destructive actions in a short window.", userID, count),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", userID, userID), Inline: true},
			{Name: "Whitelisted", Value: status, Inline: true},
			{Name: "Recent Actions", Value: summary, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// MitigationEmbed reports an executed mitigation.
func MitigationEmbed(guildID, userID, actionType string, count int, steps []string) *discordgo.MessageEmbed {
	stepList := ""
	for _, s := range steps {
		stepList += "• " + s + "\n"
	}
	if stepList == "" {
		stepList = "none"
	}

	return &discordgo.MessageEmbed{
		Title:       "🛡️ Mitigation Executed",
		Color:       embedColorRed,
		Description: fmt.Sprintf("<@%s> exceeded the action limit (%d× %s).", userID, count, models.ActionDisplayName(actionType)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", userID, userID), Inline: true},
			{Name: "Steps Taken", Value: stepList, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// WorkflowEmbed reports a rebuild/restore milestone to the operator.
func WorkflowEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Color:       embedColorRed,
		Description: description,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
