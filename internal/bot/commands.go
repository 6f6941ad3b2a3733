package bot

import "github.com/bwmarrin/discordgo"

// Command names.
const (
	cmdTrack      = "track"
	cmdUntrack    = "untrack"
	cmdList       = "list"
	cmdStatus     = "status"
	cmdForceCheck = "force_check"
	cmdStats      = "stats"
	cmdHealth     = "health"
)

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdTrack,
			Description: "Track a product URL for stock alerts",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "url",
					Description: "Product URL to monitor",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Optional friendly name",
				},
			},
		},
		{
			Name:        cmdUntrack,
			Description: "Stop tracking a product URL",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "url",
					Description: "Product URL to stop monitoring",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdList,
			Description: "Show all tracked products",
		},
		{
			Name:        cmdStatus,
			Description: "Show products currently in stock",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "retailer",
					Description: "Optional retailer key filter",
				},
			},
		},
		{
			Name:        cmdForceCheck,
			Description: "Trigger an immediate stock check",
		},
		{
			Name:        cmdStats,
			Description: "Show bot statistics",
		},
		{
			Name:        cmdHealth,
			Description: "Check bot health",
		},
	}
}
