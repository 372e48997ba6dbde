package commands

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/xac-network/faucet-bot/faucetbot"
	"github.com/xac-network/faucet-bot/faucetbot/config"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
)

var Register = discord.SlashCommandCreate{
	Name:        "register",
	Description: "🔗 Link an address to your account for faucet claims",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "address",
			Description: "The address to claim to",
			Required:    true,
		},
		discord.ApplicationCommandOptionBool{
			Name:        "change",
			Description: "Replace your current address",
			Required:    false,
		},
	},
}

func RegisterHandler(b *faucetbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		address := faucet.NormalizeAddress(data.String("address"))
		change := data.Bool("change")
		userID := e.User().ID.String()

		if address == "" {
			return e.CreateMessage(errorEmbed("That address is empty."))
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
		defer cancel()

		ok, err := b.Engine.RegisterAddress(ctx, userID, address, change)
		if err != nil {
			return e.CreateMessage(errorEmbed("Failed to register your address. Please try again later."))
		}

		if !ok {
			existing, err := b.Engine.LookupByUser(ctx, userID)
			if err == nil && existing != nil && !change {
				return e.CreateMessage(discord.MessageCreate{
					Embeds: []discord.Embed{{
						Title: "⚠️ Already registered",
						Description: fmt.Sprintf("You are registered with `%s`. Re-run with `change: True` to replace it.",
							existing.Address),
						Color: config.WarnColor,
					}},
				})
			}
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "❌ Address taken",
					Description: "That address is already linked to another user.",
					Color:       config.ErrorColor,
				}},
			})
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "✅ Registered",
				Description: fmt.Sprintf("Claims will go to `%s`.", address),
				Color:       config.SuccessColor,
			}},
		})
	}
}
