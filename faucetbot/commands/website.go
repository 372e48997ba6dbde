package commands

import (
	"context"
	"fmt"
	"net/url"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/xac-network/faucet-bot/faucetbot"
	"github.com/xac-network/faucet-bot/faucetbot/config"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
)

var Website = discord.SlashCommandCreate{
	Name:        "website",
	Description: "Link a website to your claim address",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set",
			Description: "🌐 Set the website shown for your address",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "url",
					Description: "The website URL (http or https)",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "view",
			Description: "🔍 View the website linked to an address",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "address",
					Description: "Address to look up instead of your own",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "🗑️ Remove the website linked to your address",
		},
	},
}

func WebsiteHandler(b *faucetbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
		defer cancel()

		switch *data.SubCommandName {
		case "set":
			return websiteSet(ctx, b, e, data.String("url"))
		case "view":
			return websiteView(ctx, b, e, data.String("address"))
		case "remove":
			return websiteRemove(ctx, b, e)
		}
		return e.CreateMessage(errorEmbed("Unknown subcommand."))
	}
}

func ownAddress(ctx context.Context, b *faucetbot.Bot, e *handler.CommandEvent) (string, error) {
	link, err := b.Engine.LookupByUser(ctx, e.User().ID.String())
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", nil
	}
	return link.Address, nil
}

func websiteSet(ctx context.Context, b *faucetbot.Bot, e *handler.CommandEvent, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return e.CreateMessage(errorEmbed("That doesn't look like a valid http(s) URL."))
	}

	address, err := ownAddress(ctx, b, e)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to look up your registration. Please try again later."))
	}
	if address == "" {
		return e.CreateMessage(errorEmbed("Register an address first with `/register`."))
	}

	if err := b.Engine.SetLinkedWebsite(ctx, address, parsed.String()); err != nil {
		return e.CreateMessage(errorEmbed("Failed to save the website. Please try again later."))
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "✅ Website linked",
			Description: fmt.Sprintf("`%s` now points to %s", address, parsed.String()),
			Color:       config.SuccessColor,
		}},
	})
}

func websiteView(ctx context.Context, b *faucetbot.Bot, e *handler.CommandEvent, address string) error {
	address = faucet.NormalizeAddress(address)
	if address == "" {
		own, err := ownAddress(ctx, b, e)
		if err != nil {
			return e.CreateMessage(errorEmbed("Failed to look up your registration. Please try again later."))
		}
		if own == "" {
			return e.CreateMessage(errorEmbed("You have no registered address. Pass one, or use `/register`."))
		}
		address = own
	}

	site, err := b.Engine.GetLinkedWebsite(ctx, address)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to fetch the website. Please try again later."))
	}
	if site == nil {
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "🔍 No website",
				Description: fmt.Sprintf("`%s` has no linked website.", address),
				Color:       config.InfoColor,
			}},
		})
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "🌐 Linked website",
			Description: fmt.Sprintf("`%s` → %s", address, site.URL),
			Color:       config.InfoColor,
		}},
	})
}

func websiteRemove(ctx context.Context, b *faucetbot.Bot, e *handler.CommandEvent) error {
	address, err := ownAddress(ctx, b, e)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to look up your registration. Please try again later."))
	}
	if address == "" {
		return e.CreateMessage(errorEmbed("Register an address first with `/register`."))
	}

	if err := b.Engine.RemoveLinkedWebsite(ctx, address); err != nil {
		return e.CreateMessage(errorEmbed("Failed to remove the website. Please try again later."))
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "🗑️ Website removed",
			Description: fmt.Sprintf("`%s` no longer has a linked website.", address),
			Color:       config.SuccessColor,
		}},
	})
}
