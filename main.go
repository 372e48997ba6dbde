package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/xac-network/faucet-bot/faucetbot"
	"github.com/xac-network/faucet-bot/faucetbot/commands"
	"github.com/xac-network/faucet-bot/faucetbot/config"
	"github.com/xac-network/faucet-bot/faucetbot/database"
	"github.com/xac-network/faucet-bot/faucetbot/database/repositories"
	"github.com/xac-network/faucet-bot/faucetbot/faucet"
	"github.com/xac-network/faucet-bot/faucetbot/handlers"
	"github.com/xac-network/faucet-bot/faucetbot/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := faucetbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	cfg.Faucet.Normalize()

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting XAC faucet bot",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := faucetbot.New(*cfg, version, commit)
	b.DB = db

	b.ClaimRepository = repositories.NewClaimRepository(db.BunDB())
	b.MilestoneRepository = repositories.NewMilestoneRepository(db.BunDB())
	b.UserLinkRepository = repositories.NewUserLinkRepository(db.BunDB())
	b.WebsiteRepository = repositories.NewWebsiteRepository(db.BunDB())

	schedule := faucet.Schedule{
		EpochYear:  cfg.Faucet.EpochYear,
		EpochMonth: time.Month(cfg.Faucet.EpochMonth),
		BasePayout: cfg.Faucet.BasePayout,
	}

	b.Engine = faucet.NewEngine(b.ClaimRepository, b.UserLinkRepository, b.WebsiteRepository, faucet.Config{
		Schedule:      schedule,
		ClaimInterval: cfg.Faucet.ClaimInterval(),
		MonthlyCap:    cfg.Faucet.MonthlyCap,
	})
	b.Notifier = faucet.NewNotifier(b.MilestoneRepository, b.ClaimRepository, faucet.NotifierConfig{
		Schedule:          schedule,
		MonthlyCap:        cfg.Faucet.MonthlyCap,
		LowQuotaThreshold: cfg.Faucet.LowQuotaThreshold,
		Currency:          cfg.Faucet.Currency,
	})
	b.Sessions = faucet.NewSessionManager(config.ClaimSessionDuration)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	b.Sessions.StartCleanupRoutine(runCtx)

	h := handler.New()
	h.Command("/claim", handlers.WrapWithLogging("claim", commands.ClaimHandler(b)))
	h.Command("/register", handlers.WrapWithLogging("register", commands.RegisterHandler(b)))
	h.Command("/faucet", handlers.WrapWithLogging("faucet", commands.FaucetHandler(b)))
	h.Command("/website", handlers.WrapWithLogging("website", commands.WebsiteHandler(b)))
	h.Command("/version", commands.VersionHandler(b))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gwCtx, gwCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gwCancel()
	if err = b.Client.OpenGateway(gwCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	// Milestones fire on claim traffic too; the ticker covers quiet months.
	go func() {
		ticker := time.NewTicker(config.MilestoneCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				mctx, mcancel := context.WithTimeout(context.Background(), config.QueryTimeout)
				if err := b.Notifier.Run(mctx, b.Announce()); err != nil {
					slog.Error("Milestone check failed",
						slog.String("type", "sys"),
						slog.Any("error", err))
				}
				mcancel()
			}
		}
	}()

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
