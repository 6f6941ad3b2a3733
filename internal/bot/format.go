package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/model"
	"stockbot/internal/scheduler"
)

// Embed colors per alert kind.
const (
	colorGreen  = 0x2ecc71
	colorGold   = 0xf1c40f
	colorBlue   = 0x3498db
	colorPurple = 0x9b59b6
)

type statsSnapshot struct {
	stats   scheduler.Stats
	running bool
}

func buildAlertEmbed(a model.Alert, p model.Product) *discordgo.MessageEmbed {
	var title string
	var color int
	switch a.Kind {
	case model.ClassRestocked:
		title = "IN STOCK: " + truncate(p.Name, 100)
		color = colorGreen
	case model.ClassPriceChanged:
		title = "PRICE CHANGE: " + truncate(p.Name, 100)
		color = colorGold
	case model.ClassNewListing:
		title = "NEW: " + truncate(p.Name, 100)
		color = colorBlue
	default:
		title = truncate(p.Name, 100)
		color = colorBlue
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		URL:         p.URL,
		Description: a.Message,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Price", Value: displayPrice(p.Price), Inline: true},
			{Name: "Retailer", Value: p.Retailer, Inline: true},
		},
	}
	if p.SetName != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Set", Value: p.SetName, Inline: true,
		})
	}
	return embed
}

func buildTrackedListEmbed(tracked []model.TrackedProduct) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, tp := range tracked {
		state := ""
		if !tp.Enabled {
			state = " (disabled)"
		}
		fmt.Fprintf(&b, "[%s](%s)%s\n", truncate(tp.Name, 60), tp.URL, state)
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Tracked Products (%d)", len(tracked)),
		Description: truncate(b.String(), 4000),
		Color:       colorBlue,
	}
}

func buildStatusEmbed(products []model.Product) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("In Stock (%d items)", len(products)),
		Color: colorGreen,
	}
	for _, p := range products {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  truncate(p.Name, 60),
			Value: fmt.Sprintf("%s | %s | [Link](%s)", p.Retailer, displayPrice(p.Price), p.URL),
		})
	}
	return embed
}

func buildStatsEmbed(total, inStock, recentAlerts int, snap *statsSnapshot) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Bot Statistics",
		Color: colorPurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Products", Value: fmt.Sprint(total), Inline: true},
			{Name: "In Stock", Value: fmt.Sprint(inStock), Inline: true},
			{Name: "Alerts (24h)", Value: fmt.Sprint(recentAlerts), Inline: true},
		},
	}
	if snap != nil {
		state := "Stopped"
		if snap.running {
			state = "Running"
		}
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Ticks", Value: fmt.Sprint(snap.stats.TotalTicks), Inline: true},
			&discordgo.MessageEmbedField{Name: "Cycles OK", Value: fmt.Sprint(snap.stats.SuccessfulCycles), Inline: true},
			&discordgo.MessageEmbedField{Name: "Cycles Failed", Value: fmt.Sprint(snap.stats.FailedCycles), Inline: true},
			&discordgo.MessageEmbedField{Name: "Alerts Sent", Value: fmt.Sprint(snap.stats.AlertsSent), Inline: true},
			&discordgo.MessageEmbedField{Name: "Suppressed", Value: fmt.Sprint(snap.stats.AlertsSuppressed), Inline: true},
			&discordgo.MessageEmbedField{Name: "Scheduler", Value: state, Inline: true},
		)
	}
	return embed
}

func buildHealthEmbed(dbStatus, schedStatus string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Health Check",
		Color: colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Database", Value: dbStatus, Inline: true},
			{Name: "Scheduler", Value: schedStatus, Inline: true},
		},
	}
}

func displayPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
