package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/xac-network/faucet-bot/faucetbot"
	"github.com/xac-network/faucet-bot/faucetbot/config"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
)

var Claim = discord.SlashCommandCreate{
	Name:        "claim",
	Description: "🚰 Claim this month's faucet payout to your registered address",
}

func ClaimHandler(b *faucetbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		userID := e.User().ID.String()

		if !b.Sessions.Lock(userID) {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "⏳ Claim in progress",
					Description: "You already have a claim running. Give it a moment.",
					Color:       config.WarnColor,
				}},
			})
		}
		defer b.Sessions.Release(userID)

		ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
		defer cancel()

		link, err := b.Engine.LookupByUser(ctx, userID)
		if err != nil {
			return e.CreateMessage(errorEmbed("Failed to look up your registration. Please try again later."))
		}
		if link == nil {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "❌ Not registered",
					Description: "Register an address first with `/register`.",
					Color:       config.ErrorColor,
				}},
			})
		}

		el, err := b.Engine.NextClaimTime(ctx, link.Address)
		if err != nil {
			return e.CreateMessage(errorEmbed("Failed to check your eligibility. Please try again later."))
		}

		if !el.UnderMonthlyCap {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "🛑 Monthly cap reached",
					Description: fmt.Sprintf("The faucet is empty for this month. Claims reset <t:%d:R>.", el.NextClaimUnix),
					Color:       config.WarnColor,
				}},
			})
		}
		if !el.HasEnoughTime {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "⏰ Too soon",
					Description: fmt.Sprintf("You can claim again <t:%d:R>.", el.NextClaimUnix),
					Color:       config.WarnColor,
				}},
			})
		}

		amount := b.Engine.CurrentPayout()
		if err := b.Engine.RecordClaim(ctx, link.Address, amount); err != nil {
			if errors.Is(err, faucet.ErrClaimConflict) {
				return e.CreateMessage(errorEmbed("The faucet is busy, please try again."))
			}
			return e.CreateMessage(errorEmbed("Failed to record your claim. Please try again later."))
		}

		// Milestones piggyback on claim traffic; failures only get logged.
		go func() {
			mctx, mcancel := context.WithTimeout(context.Background(), config.QueryTimeout)
			defer mcancel()
			if err := b.Notifier.Run(mctx, b.Announce()); err != nil {
				slog.Error("Milestone check failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
			}
		}()

		now := time.Now()
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "✅ Claim recorded",
				Description: fmt.Sprintf("**%s %s** is on its way to `%s`.",
					faucet.FormatAmount(amount), b.Cfg.Faucet.Currency, link.Address),
				Color:     config.SuccessColor,
				Timestamp: &now,
				Footer: &discord.EmbedFooter{
					Text: fmt.Sprintf("Requested by %s", e.User().Username),
				},
			}},
		})
	}
}

func errorEmbed(description string) discord.MessageCreate {
	return discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "❌ Error",
			Description: description,
			Color:       config.ErrorColor,
		}},
	}
}
