package faucetbot

import (
	"context"
	"time"

	"log/slog"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/xac-network/faucet-bot/faucetbot/database"
	"github.com/xac-network/faucet-bot/faucetbot/database/repositories"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	DB                  *database.DB
	ClaimRepository     repositories.ClaimRepository
	MilestoneRepository repositories.MilestoneRepository
	UserLinkRepository  repositories.UserLinkRepository
	WebsiteRepository   repositories.WebsiteRepository

	Engine   *faucet.Engine
	Notifier *faucet.Notifier
	Sessions *faucet.SessionManager
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

// Announce returns the AnnounceFunc used for milestone delivery: a plain
// message to the configured announcement channel.
func (b *Bot) Announce() faucet.AnnounceFunc {
	return func(ctx context.Context, message string) error {
		_, err := b.Client.Rest().CreateMessage(b.Cfg.Bot.AnnounceChannel,
			discord.NewMessageCreateBuilder().SetContent(message).Build())
		return err
	}
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("XAC faucet bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the faucet drip"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
