package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivemindhq/hivebot/internal/bus"
	"github.com/hivemindhq/hivebot/internal/cache"
	"github.com/hivemindhq/hivebot/internal/command"
	"github.com/hivemindhq/hivebot/internal/config"
	"github.com/hivemindhq/hivebot/internal/dispatch"
	"github.com/hivemindhq/hivebot/internal/github"
	"github.com/hivemindhq/hivebot/internal/intent"
	"github.com/hivemindhq/hivebot/internal/knowledge"
	"github.com/hivemindhq/hivebot/internal/matcher"
	"github.com/hivemindhq/hivebot/internal/slackio"
	"github.com/hivemindhq/hivebot/internal/store/pg"
	"github.com/hivemindhq/hivebot/internal/telemetry"
	"github.com/hivemindhq/hivebot/internal/workspace"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without traces", "error", err)
	}
	defer shutdownTelemetry(context.Background())

	// Dedupe / distributed cache. Degrades to process-local when Redis
	// is not configured.
	shared, err := cache.Open(cfg.Redis.URL)
	if err != nil {
		slog.Error("failed to open redis", "error", err)
		os.Exit(1)
	}
	defer shared.Close()
	if shared.Distributed() {
		if err := shared.Ping(ctx); err != nil {
			slog.Error("redis ping failed", "error", err)
			os.Exit(1)
		}
	}

	// Thread context persists across restarts when Postgres is
	// configured; without it every thread gets an ephemeral context.
	var threads *pg.ThreadStore
	var feedback *pg.FeedbackStore
	if dsn := cfg.Database.PostgresDSN; dsn != "" {
		db, err := pg.OpenDB(dsn)
		if err != nil {
			slog.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		threads = pg.NewThreadStore(db)
		feedback = pg.NewFeedbackStore(db)
	} else {
		slog.Warn("postgres not configured, thread context will not survive restarts")
		threads = pg.NewThreadStore(nil)
		feedback = pg.NewFeedbackStore(nil)
	}

	kb := knowledge.New(cfg.Knowledge)
	directory := workspace.NewDirectory(kb, shared,
		cfg.Workspaces.DirectoryTTL.Std(5*time.Minute),
		cfg.Workspaces.RedisTTL.Std(30*time.Minute))
	resolver := workspace.NewResolver(directory,
		cfg.Workspaces.Users, cfg.Workspaces.Channels, cfg.Workspaces.Fallback)

	ghClient := github.New(cfg.GitHub)
	var gh dispatch.GitHub
	if ghClient != nil {
		gh = ghClient
	} else {
		slog.Warn("github token not configured, structured commands are disabled")
	}

	var dynamic *matcher.DynamicKeywords
	if cfg.Workspaces.DynamicKeywords.Enabled && ghClient != nil {
		dynamic = matcher.NewDynamicKeywords(ghClient,
			cfg.Workspaces.DynamicKeywords.TTL.Std(time.Hour))
	}
	heuristic := intent.NewHeuristic(cfg.Workspaces.Keywords, dynamic, cfg.Workspaces.Fallback)
	classifier := intent.New(cfg.Classifier, heuristic)

	b := bus.New()
	gateway, err := slackio.NewGateway(cfg.Slack, b)
	if err != nil {
		slog.Error("failed to build slack gateway", "error", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Router:      command.NewRouter(cfg.Slack.CommandPrefix, cfg.GitHub),
		Classifier:  classifier,
		Resolver:    resolver,
		Directory:   directory,
		Threads:     threads,
		Feedback:    feedback,
		Dedupe:      shared,
		GitHub:      gh,
		Knowledge:   kb,
		Messenger:   slackio.NewMessenger(gateway.API()),
		Classifiers: cfg.Classifier,
		DedupeTTL:   cfg.Redis.DedupeTTL.Std(10 * time.Minute),
		BotUserID:   gateway.BotUserID,
	})

	go dispatcher.Run(ctx, b)

	slog.Info("hivebot starting",
		"version", Version,
		"command_prefix", cfg.Slack.CommandPrefix,
		"classifier", cfg.Classifier.Strategy,
		"github", ghClient != nil,
		"redis", shared.Distributed(),
	)

	if err := gateway.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("slack gateway stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}
