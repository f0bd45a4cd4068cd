package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/chainwatch/internal/alerts"
	"github.com/web3-frozen/chainwatch/internal/broadcast"
	"github.com/web3-frozen/chainwatch/internal/collector"
	"github.com/web3-frozen/chainwatch/internal/config"
	"github.com/web3-frozen/chainwatch/internal/handler"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/locale"
	"github.com/web3-frozen/chainwatch/internal/messenger"
	"github.com/web3-frozen/chainwatch/internal/messenger/discord"
	"github.com/web3-frozen/chainwatch/internal/messenger/slack"
	"github.com/web3-frozen/chainwatch/internal/messenger/telegram"
	"github.com/web3-frozen/chainwatch/internal/middleware"
	"github.com/web3-frozen/chainwatch/internal/milestone"
	"github.com/web3-frozen/chainwatch/internal/monitor"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
	"github.com/web3-frozen/chainwatch/internal/store"
)

// channelSettings lifts a channel's quarantine when it subscribes again.
type channelSettings struct {
	*store.Store
	broadcaster *broadcast.Broadcaster
}

func (c channelSettings) Subscribe(ctx context.Context, ch messenger.Channel) error {
	if err := c.Store.Subscribe(ctx, ch); err != nil {
		return err
	}
	return c.broadcaster.Restore(ctx, ch)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Redis (retry up to 30s for ExternalSecret to sync)
	var kvs *kv.Redis
	for i := 0; i < 6; i++ {
		kvs, err = kv.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer kvs.Close()
	logger.Info("redis connected")

	locales := locale.Default()
	if lang := locale.Normalize(cfg.DefaultLang); lang != locales.DefaultLang() {
		if m, err := locale.NewManager(lang, locale.English{}, locale.Russian{}); err == nil {
			locales = m
		} else {
			logger.Warn("unsupported DEFAULT_LANG, keeping default", "lang", cfg.DefaultLang, "error", err)
		}
	}

	// Messenger adapters
	var adapters []messenger.Adapter
	var tg *telegram.Client
	if cfg.TelegramToken != "" {
		tg = telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPIURL, logger)
		adapters = append(adapters, tg)
	}
	if cfg.DiscordToken != "" {
		dc, err := discord.New(cfg.DiscordToken)
		if err != nil {
			logger.Error("discord adapter disabled", "error", err)
		} else {
			adapters = append(adapters, dc)
		}
	}
	if cfg.SlackToken != "" {
		adapters = append(adapters, slack.New(cfg.SlackToken, cfg.SlackAPIURL))
	}
	if len(adapters) == 0 {
		logger.Error("no messenger configured: set TELEGRAM_BOT_TOKEN, DISCORD_BOT_TOKEN or SLACK_BOT_TOKEN")
		os.Exit(1)
	}

	bcfg := broadcast.DefaultConfig()
	bcfg.Static = cfg.StaticChannels
	bcfg.SendInterval = cfg.SendInterval
	bcfg.UserMaxHits = cfg.UserMaxHits
	bcfg.UserWindow = cfg.UserWindow
	bcfg.UserSuppress = cfg.UserSuppress
	broadcaster := broadcast.New(kvs, db, locales, logger, bcfg, adapters...)
	presenter := alerts.NewPresenter(broadcaster, db, logger)

	// Sources and detectors
	reg := monitor.NewRegistry(logger)

	detector, err := milestone.NewDetector(kvs, logger, alerts.DefaultMilestones())
	if err != nil {
		logger.Error("invalid milestone config", "error", err)
		os.Exit(1)
	}
	achievements := alerts.NewAchievements(detector, cfg.ChainGenesis, logger)
	achievements.Subscribe(presenter)

	prices := monitor.NewWatchedSource(reg, sources.NewBinance(cfg.PriceSymbols), cfg.PricePeriod, logger)
	priceDrop := alerts.NewPriceDrop(kvs, cfg.PriceDropThreshold, cfg.PriceDropCooldown, logger)
	priceDrop.Subscribe(presenter)
	prices.Subscribe(priceDrop)
	prices.Subscribe(achievements)

	fng := monitor.NewWatchedSource(reg, sources.NewFearGreed(), cfg.FearGreedPeriod, logger)
	sentiment := alerts.NewSentiment(kvs, cfg.SentimentDwell)
	sentiment.Subscribe(presenter)
	fng.Subscribe(sentiment)

	if cfg.EthRPCURL != "" {
		head, err := sources.DialChainHead(ctx, "ethereum", cfg.EthRPCURL)
		if err != nil {
			logger.Error("chain head source disabled", "error", err)
		} else {
			defer head.Close()
			blocks := monitor.NewWatchedSource(reg, head, cfg.BlockPeriod, logger)
			stuck := alerts.NewBlockStuck(kvs, head.Name(), cfg.BlockStuckAfter, logger, time.Now)
			stuck.Subscribe(presenter)
			blocks.Subscribe(stuck)
			blocks.Subscribe(achievements)
		}
	}

	liqCollector := collector.New(db, cfg.LiquidationSymbols, logger)
	liq := monitor.NewWatchedSource(reg, liqCollector, cfg.LiquidationPeriod, logger)
	bigLiq := alerts.NewLiquidations(kvs, cfg.LiquidationMinUSD, cfg.LiquidationCooldown, cfg.LiquidationMaxAlerts)
	bigLiq.Subscribe(presenter)
	liq.Subscribe(bigLiq)

	loc, err := time.LoadLocation(cfg.DigestTimezone)
	if err != nil {
		logger.Warn("unknown DIGEST_TZ, using UTC", "tz", cfg.DigestTimezone, "error", err)
		loc = time.UTC
	}
	digest, err := alerts.NewDigest(reg, cfg.DigestCron, loc, logger)
	if err != nil {
		logger.Error("invalid DIGEST_CRON", "error", err)
		os.Exit(1)
	}
	digest.Subscribe(presenter)

	logger.Info("sources registered", "sources", reg.SourceNames())

	// Start background goroutines
	if cfg.LiquidationPeriod >= 0 {
		go liqCollector.Run(ctx)
	}
	go reg.Run(ctx)
	digest.Start(ctx)
	if tg != nil {
		bot := telegram.NewBot(tg, channelSettings{Store: db, broadcaster: broadcaster}, locales, logger)
		go bot.Run(ctx)
	}

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(db, kvs))

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", handler.Sources(reg))
		r.Get("/graph", handler.Graph(reg))
		r.Get("/milestones/{key}", handler.Milestone(detector))
		r.Get("/alerts", handler.RecentAlerts(db))
		r.Get("/stats", handler.Stats(db, reg))
		r.Get("/channels", handler.ListChannels(db))
		r.Post("/channels", handler.Subscribe(db, broadcaster))
		r.Delete("/channels/{platform}/{id}", handler.Unsubscribe(db))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
