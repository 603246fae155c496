package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type discordAPI interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordConfig holds Discord notifier configuration
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// DiscordNotifier posts reminders as embeds to one channel over the REST API.
type DiscordNotifier struct {
	api       discordAPI
	channelID string
	logger    *zap.Logger
}

func NewDiscordNotifier(cfg DiscordConfig, logger *zap.Logger) (*DiscordNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord channel id is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return newDiscordNotifier(session, cfg.ChannelID, logger), nil
}

func newDiscordNotifier(api discordAPI, channelID string, logger *zap.Logger) *DiscordNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordNotifier{api: api, channelID: channelID, logger: logger}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (d *DiscordNotifier) Show(ctx context.Context, n Notification) error {
	embed := &discordgo.MessageEmbed{
		Title:       "💊 " + n.Title,
		Description: n.Body,
		Color:       0x2ecc71,
		Timestamp:   n.ScheduledTime.Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "PillPal"},
	}

	if _, err := d.api.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}

	d.logger.Debug("Discord reminder sent", zap.String("channel_id", d.channelID), zap.String("dose_id", n.DoseID))
	return nil
}
