package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mizajour/leadline/internal/config"
	"github.com/mizajour/leadline/internal/dashboard"
	"github.com/mizajour/leadline/internal/db"
	"github.com/mizajour/leadline/internal/digest"
	"github.com/mizajour/leadline/internal/events"
	"github.com/mizajour/leadline/internal/live"
	"github.com/mizajour/leadline/internal/logging"
	"github.com/mizajour/leadline/internal/notify"
	"github.com/mizajour/leadline/internal/notify/discord"
	"github.com/mizajour/leadline/internal/notify/slack"
	"github.com/mizajour/leadline/internal/webhook"
	"github.com/mizajour/leadline/internal/whatsapp"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Leadline server",
		Long:  "Runs the webhook receiver, agent dashboard, and reply dispatcher in one process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadline.yaml", "path to Leadline config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	logger := logging.Init(logging.Config{Level: cfg.Server.LogLevel})

	gormDB, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	registry := live.NewRegistry(logger)
	defer registry.Close()

	sender, err := whatsapp.New(whatsapp.Opts{
		APIBase:       cfg.WhatsApp.APIBase,
		Version:       cfg.WhatsApp.Version,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}

	var publisher events.Publisher
	if cfg.EventsEnabled() {
		amqpPub, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange, logger)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info().Str("exchange", cfg.Events.Exchange).Msg("event mirror connected")
	}

	wh, err := webhook.NewHandler(webhook.HandlerOpts{
		DB:          gormDB,
		VerifyToken: cfg.Webhook.VerifyToken,
		Registry:    registry,
		Notifier:    notifier,
		Publisher:   publisher,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Digest.Enabled {
		scheduler, err := digest.NewScheduler(digest.SchedulerOpts{
			DB:       gormDB,
			Notifier: notifier,
			CronExpr: cfg.Digest.Schedule,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		go scheduler.Run(ctx)
		logger.Info().Str("cron", cfg.Digest.Schedule).Msg("daily digest scheduled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:        gormDB,
		Port:      port,
		Registry:  registry,
		Webhook:   wh,
		Sender:    sender,
		Publisher: publisher,
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
	})
}

// buildNotifier wires up whichever notification platforms the config enables.
func buildNotifier(cfg *config.Config, logger zerolog.Logger) (*notify.Multi, error) {
	var notifiers []notify.Notifier
	if cfg.SlackEnabled() {
		n, err := slack.New(slack.Opts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
		logger.Info().Str("channel", cfg.Notify.Slack.ChannelID).Msg("slack notifications enabled")
	}
	if cfg.DiscordEnabled() {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
		logger.Info().Str("channel", cfg.Notify.Discord.ChannelID).Msg("discord notifications enabled")
	}
	return notify.NewMulti(logger, notifiers...), nil
}
