package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/model"
	"stockbot/internal/scraper"
	"stockbot/internal/storage"
)

const handlerTimeout = 2 * time.Minute

func (b *Bot) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	userID := interactionUserID(i)
	if !b.cfg.IsUserAllowed(userID) {
		b.respondEphemeral(i, "Access denied.")
		return
	}

	data := i.ApplicationCommandData()
	opts := optionMap(data.Options)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	b.log.Debug("command", "cmd", data.Name, "user_id", userID)

	switch data.Name {
	case cmdTrack:
		b.handleTrack(ctx, i, opts["url"], opts["name"], userID)
	case cmdUntrack:
		b.handleUntrack(ctx, i, opts["url"])
	case cmdList:
		b.handleList(ctx, i)
	case cmdStatus:
		b.handleStatus(ctx, i, opts["retailer"])
	case cmdForceCheck:
		b.handleForceCheck(ctx, i)
	case cmdStats:
		b.handleStats(ctx, i)
	case cmdHealth:
		b.handleHealth(ctx, i)
	default:
		b.respondEphemeral(i, "Unknown command.")
	}
}

func (b *Bot) handleTrack(ctx context.Context, i *discordgo.InteractionCreate, url, name, userID string) {
	if url == "" {
		b.respondEphemeral(i, "A product URL is required.")
		return
	}
	if !b.cfg.AllowedDomain(url) {
		b.respondEphemeral(i, "URL must belong to one of the supported retailers.")
		return
	}
	if name == "" {
		name = url
	}

	tp := &model.TrackedProduct{
		ID:      scraper.ProductID("tracked", url),
		URL:     url,
		Name:    name,
		AddedBy: userID,
		Enabled: true,
	}
	if err := b.store.AddTracked(ctx, tp); err != nil {
		b.log.Error("add tracked", "url", url, "error", err)
		b.respondEphemeral(i, "Failed to save the tracked product.")
		return
	}
	b.respond(i, fmt.Sprintf("Now tracking **%s**.", name))
}

func (b *Bot) handleUntrack(ctx context.Context, i *discordgo.InteractionCreate, url string) {
	if url == "" {
		b.respondEphemeral(i, "A product URL is required.")
		return
	}
	removed, err := b.store.RemoveTracked(ctx, scraper.ProductID("tracked", url))
	if err != nil {
		b.log.Error("remove tracked", "url", url, "error", err)
		b.respondEphemeral(i, "Failed to remove the tracked product.")
		return
	}
	if !removed {
		b.respondEphemeral(i, "That URL wasn't being tracked.")
		return
	}
	b.respond(i, fmt.Sprintf("Stopped tracking %s.", url))
}

func (b *Bot) handleList(ctx context.Context, i *discordgo.InteractionCreate) {
	tracked, err := b.store.ListTracked(ctx)
	if err != nil {
		b.log.Error("list tracked", "error", err)
		b.respondEphemeral(i, "Failed to load tracked products.")
		return
	}
	if len(tracked) == 0 {
		b.respond(i, "No products are being tracked. Use /track <url> to add one.")
		return
	}
	b.respondEmbed(i, buildTrackedListEmbed(tracked))
}

func (b *Bot) handleStatus(ctx context.Context, i *discordgo.InteractionCreate, retailer string) {
	products, err := b.store.ListProducts(ctx, storage.ProductFilter{
		Retailer:    retailer,
		InStockOnly: true,
	}, 25, 0)
	if err != nil {
		b.log.Error("list products", "error", err)
		b.respondEphemeral(i, "Failed to load stock status.")
		return
	}
	if len(products) == 0 {
		b.respond(i, "No products currently in stock.")
		return
	}
	b.respondEmbed(i, buildStatusEmbed(products))
}

func (b *Bot) handleForceCheck(_ context.Context, i *discordgo.InteractionCreate) {
	if b.monitor == nil || !b.monitor.Running() {
		b.respondEphemeral(i, "Scheduler is not running.")
		return
	}

	// A full check can take a while; defer the reply and follow up.
	if err := b.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.Error("defer response", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		before := b.monitor.Stats().AlertsSent
		b.monitor.ForceCheck(ctx)
		sent := b.monitor.Stats().AlertsSent - before

		_, err := b.api.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Content: fmt.Sprintf("Check complete. Sent **%d** alert(s).", sent),
		})
		if err != nil {
			b.log.Error("followup message", "error", err)
		}
	}()
}

func (b *Bot) handleStats(ctx context.Context, i *discordgo.InteractionCreate) {
	total, err := b.store.CountProducts(ctx)
	if err != nil {
		b.log.Error("count products", "error", err)
		b.respondEphemeral(i, "Failed to load statistics.")
		return
	}
	inStock, err := b.store.CountInStock(ctx)
	if err != nil {
		b.log.Error("count in stock", "error", err)
		b.respondEphemeral(i, "Failed to load statistics.")
		return
	}
	recent, err := b.store.CountRecentAlerts(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		b.log.Error("count recent alerts", "error", err)
		b.respondEphemeral(i, "Failed to load statistics.")
		return
	}

	var stats *statsSnapshot
	if b.monitor != nil {
		s := b.monitor.Stats()
		stats = &statsSnapshot{stats: s, running: b.monitor.Running()}
	}
	b.respondEmbed(i, buildStatsEmbed(total, inStock, recent, stats))
}

func (b *Bot) handleHealth(ctx context.Context, i *discordgo.InteractionCreate) {
	dbStatus := "OK"
	if _, err := b.store.CountProducts(ctx); err != nil {
		dbStatus = fmt.Sprintf("ERROR: %v", err)
	}
	schedStatus := "Stopped"
	if b.monitor != nil && b.monitor.Running() {
		schedStatus = "Running"
	}
	b.respondEmbed(i, buildHealthEmbed(dbStatus, schedStatus))
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.log.Error("interaction respond", "error", err)
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("interaction respond", "error", err)
	}
}

func (b *Bot) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		b.log.Error("interaction respond", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(opts))
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionString {
			out[o.Name] = o.StringValue()
		}
	}
	return out
}
