// Package bot implements the Discord command surface and alert delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sethvargo/go-retry"

	"stockbot/internal/config"
	"stockbot/internal/model"
	"stockbot/internal/scheduler"
	"stockbot/internal/storage"
)

// discordAPI is the slice of *discordgo.Session the bot uses, extracted so
// handlers can be tested against a fake session.
type discordAPI interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Monitor is the scheduler handle the command surface needs. The bot never
// imports the scheduler's internals beyond this.
type Monitor interface {
	ForceCheck(ctx context.Context)
	Stats() scheduler.Stats
	Running() bool
}

// Bot handles slash commands and delivers stock alerts to the configured
// channel. It implements alert.Sink.
type Bot struct {
	api     discordAPI
	appID   func() string
	store   storage.Storage
	cfg     *config.Config
	log     *slog.Logger
	monitor Monitor
}

// New creates a Bot for the configured Discord token. The scheduler handle
// is attached later via SetMonitor, breaking the construction cycle
// between the scheduler (which needs the bot as sink) and the bot (which
// needs the scheduler for commands).
func New(cfg *config.Config, store storage.Storage, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		api:   session,
		appID: func() string { return session.State.User.ID },
		store: store,
		cfg:   cfg,
		log:   log,
	}
	session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(i)
	})
	return b, nil
}

// SetMonitor attaches the scheduler handle. Must be called before Run.
func (b *Bot) SetMonitor(m Monitor) {
	b.monitor = m
}

// Run opens the gateway connection, registers the slash commands, and
// blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.api.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer func() { _ = b.api.Close() }()

	if _, err := b.api.ApplicationCommandBulkOverwrite(b.appID(), "", commands()); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.log.Info("slash commands registered", "count", len(commands()))

	<-ctx.Done()
	return nil
}

// Send delivers one alert to the configured channel. Transient Discord
// failures are retried with exponential backoff before giving up.
func (b *Bot) Send(ctx context.Context, a model.Alert, p model.Product) error {
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{buildAlertEmbed(a, p)},
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := b.api.ChannelMessageSendComplex(b.cfg.DiscordChannelID, msg)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	if rerr, ok := err.(*discordgo.RESTError); ok && rerr.Response != nil {
		code := rerr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	// Gateway hiccups and transport errors are worth one more try.
	return true
}
