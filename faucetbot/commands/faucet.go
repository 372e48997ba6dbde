package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/xac-network/faucet-bot/faucetbot"
	"github.com/xac-network/faucet-bot/faucetbot/config"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
)

const claimantsPerPage = 10

var Faucet = discord.SlashCommandCreate{
	Name:        "faucet",
	Description: "Faucet status and history",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "stats",
			Description: "📊 Current month, payout and claim totals",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "next",
			Description: "⏰ When you (or an address) can claim next",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "address",
					Description: "Address to check instead of your registered one",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "top",
			Description: "🏆 Addresses with the most claims",
		},
	},
}

func FaucetHandler(b *faucetbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		switch *data.SubCommandName {
		case "stats":
			return faucetStats(b, e)
		case "next":
			return faucetNext(b, e, data.String("address"))
		case "top":
			return faucetTop(b, e)
		}
		return e.CreateMessage(errorEmbed("Unknown subcommand."))
	}
}

func faucetStats(b *faucetbot.Bot, e *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	stats, err := b.Engine.Stats(ctx)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to fetch faucet stats. Please try again later."))
	}

	currency := b.Cfg.Faucet.Currency
	description := fmt.Sprintf(
		"**Distribution month:** %d\n"+
			"**Current payout:** %s %s\n"+
			"**Claims this month:** %d / %d\n"+
			"**Claims in the last 24h:** %d\n"+
			"**Unique claimants:** %d\n"+
			"**All-time claims:** %d",
		stats.MonthIndex,
		faucet.FormatAmount(stats.PayoutAmount), currency,
		stats.ClaimsThisMonth, b.Cfg.Faucet.MonthlyCap,
		stats.ClaimsLast24h,
		stats.UniqueClaimants,
		stats.TotalClaims,
	)

	now := time.Now()
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "🚰 Faucet stats",
			Description: description,
			Color:       config.InfoColor,
			Timestamp:   &now,
		}},
	})
}

func faucetNext(b *faucetbot.Bot, e *handler.CommandEvent, address string) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	address = faucet.NormalizeAddress(address)
	if address == "" {
		link, err := b.Engine.LookupByUser(ctx, e.User().ID.String())
		if err != nil {
			return e.CreateMessage(errorEmbed("Failed to look up your registration. Please try again later."))
		}
		if link == nil {
			return e.CreateMessage(errorEmbed("You have no registered address. Pass one, or use `/register`."))
		}
		address = link.Address
	}

	el, err := b.Engine.NextClaimTime(ctx, address)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to check eligibility. Please try again later."))
	}

	if el.HasEnoughTime && el.UnderMonthlyCap {
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "✅ Ready to claim",
				Description: fmt.Sprintf("`%s` can claim right now.", address),
				Color:       config.SuccessColor,
			}},
		})
	}

	reason := "cooldown"
	if !el.UnderMonthlyCap {
		reason = "monthly cap"
	}
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "⏰ Not yet",
			Description: fmt.Sprintf("`%s` can claim again <t:%d:R> (%s).", address, el.NextClaimUnix, reason),
			Color:       config.WarnColor,
		}},
	})
}

func faucetTop(b *faucetbot.Bot, e *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	recs, err := b.Engine.TopClaimants(ctx, 100)
	if err != nil {
		return e.CreateMessage(errorEmbed("Failed to fetch the leaderboard. Please try again later."))
	}
	if len(recs) == 0 {
		return e.CreateMessage(errorEmbed("Nobody has claimed yet."))
	}

	totalPages := int(math.Ceil(float64(len(recs)) / float64(claimantsPerPage)))

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			startIdx := page * claimantsPerPage
			endIdx := min(startIdx+claimantsPerPage, len(recs))

			var description strings.Builder
			for i, rec := range recs[startIdx:endIdx] {
				description.WriteString(fmt.Sprintf("**%d.** `%s` — %d claims\n",
					startIdx+i+1, rec.Address, rec.ClaimsAllTime))
			}

			embed.
				SetTitle("🏆 Top claimants").
				SetDescription(description.String()).
				SetColor(config.InfoColor).
				SetFooter(fmt.Sprintf("Page %d/%d • Total claimants shown: %d", page+1, totalPages, len(recs)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}
