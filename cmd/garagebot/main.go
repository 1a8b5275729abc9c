package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyberops7/garagebot/internal/api"
	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
	"github.com/cyberops7/garagebot/internal/biz/usecase"
	"github.com/cyberops7/garagebot/internal/conf"
	"github.com/cyberops7/garagebot/internal/data"
	"github.com/cyberops7/garagebot/internal/metrics"
	"github.com/cyberops7/garagebot/internal/server"
	"github.com/cyberops7/garagebot/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *conf.Config, log *slog.Logger) error {
	// Seen-state store: persisted when a DB path is configured
	var seen repo.SeenStore
	var err error
	if cfg.Seen.DBPath != "" {
		seen, err = data.NewSQLiteSeenStore(cfg.Seen.DBPath, cfg.Seen.MaxPerFeed)
		if err != nil {
			return err
		}
		log.Info("seen-state DB opened", "path", cfg.Seen.DBPath)
	} else {
		seen = data.NewMemorySeenStore(cfg.Seen.MaxPerFeed)
		log.Info("seen-state held in memory only")
	}
	defer seen.Close()

	// Discord adapter serves as both gateway and chat API
	discord, err := data.NewDiscordClient(cfg.Discord.Token, cfg.Discord.GuildID, log)
	if err != nil {
		return err
	}

	dispatcher := service.NewDispatcher(discord, service.DispatcherConfig{
		DryRun:         cfg.DryRun,
		AuditChannelID: cfg.Channels.AuditLog,
	}, log)
	if cfg.DryRun {
		log.Warn("DRY_RUN enabled: external mutating calls are suppressed")
	}

	thresholds := usecase.Thresholds{
		BurstCount:      cfg.Thresholds.BurstCount,
		BurstWindow:     cfg.Thresholds.BurstWindow,
		TrapChannelID:   cfg.Channels.Trap,
		PrivilegedRoles: cfg.Roles.Privileged,
	}

	// Event pipeline with explicit command registration
	pipeline := server.NewServer(dispatcher, thresholds, cfg.Channels, log)
	server.RegisterBasicCommands(pipeline)
	discord.OnEvent(pipeline.HandleEvent)

	// Periodic jobs
	sched := service.NewScheduler(discord, log)

	feedSource := data.NewFeedSource(log)
	poller := usecase.NewPollerUsecase(feedSource, seen, dispatcher, cfg.Channels.Announce, log)
	for _, feed := range cfg.Feeds {
		feed := feed
		err := sched.RegisterJob("poll-"+feed.Name, cfg.Jobs.PollInterval, func(ctx context.Context) error {
			announced, err := poller.PollFeed(ctx, feed.Name, feed.URL)
			if err != nil {
				metrics.PollCycles.WithLabelValues(feed.Name, "error").Inc()
				return err
			}
			metrics.PollCycles.WithLabelValues(feed.Name, "ok").Inc()
			if announced > 0 {
				metrics.ItemsAnnounced.WithLabelValues(feed.Name).Add(float64(announced))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	cleanup := usecase.NewCleanupUsecase(discord, dispatcher, usecase.CleanupConfig{
		MemberMaxAge:   cfg.Jobs.MemberMaxAge,
		MemberRoleID:   cfg.Roles.Member,
		BotRoleID:      cfg.Roles.Bot,
		AuditChannelID: cfg.Channels.AuditLog,
	}, log)
	err = sched.RegisterJob("member-cleanup", cfg.Jobs.CleanupInterval, func(ctx context.Context) error {
		_, err := cleanup.Sweep(ctx)
		return err
	})
	if err != nil {
		return err
	}

	// Start the scheduler (opens the gateway)
	if err := sched.Start(context.Background()); err != nil {
		return err
	}
	logLifecycle(dispatcher, cfg.Channels.AuditLog, "Bot Started", log)

	// HTTP healthcheck/status surface
	apiServer := api.NewServer(sched, discord, cfg.API.Port, log)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	logLifecycle(dispatcher, cfg.Channels.AuditLog, "Bot Stopping", log)
	pipeline.Close()
	sched.Stop(cfg.Jobs.StopGrace)
	if err := apiServer.Stop(); err != nil {
		log.Warn("api server shutdown error", "error", err)
	}
	return nil
}

// logLifecycle posts a best-effort lifecycle embed to the audit channel
func logLifecycle(dispatcher *service.Dispatcher, auditChannelID, title string, log *slog.Logger) {
	if auditChannelID == "" {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	action := domain.LogEmbedAction(auditChannelID, title,
		[]domain.EmbedField{{Name: "Time", Value: now, Inline: true}},
		domain.ActionKey("lifecycle", title, now))
	if _, err := dispatcher.Dispatch(context.Background(), action); err != nil {
		log.Warn("lifecycle audit log failed", "title", title, "error", err)
	}
}
