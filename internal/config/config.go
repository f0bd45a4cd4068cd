package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

type Config struct {
	Port           string
	DatabaseURL    string
	FrontendOrigin string
	RedisURL       string
	RedisPassword  string

	TelegramToken  string
	TelegramAPIURL string
	DiscordToken   string
	SlackToken     string
	SlackAPIURL    string
	StaticChannels []messenger.Channel
	DefaultLang    string

	EthRPCURL          string
	ChainGenesis       time.Time
	PriceSymbols       []string
	LiquidationSymbols []string

	// Poll periods. A negative period disables the source.
	PricePeriod       time.Duration
	FearGreedPeriod   time.Duration
	BlockPeriod       time.Duration
	LiquidationPeriod time.Duration

	BlockStuckAfter      time.Duration
	PriceDropThreshold   float64
	PriceDropCooldown    time.Duration
	SentimentDwell       time.Duration
	LiquidationMinUSD    float64
	LiquidationCooldown  time.Duration
	LiquidationMaxAlerts int

	DigestCron     string
	DigestTimezone string

	SendInterval time.Duration
	UserMaxHits  int
	UserWindow   time.Duration
	UserSuppress time.Duration
}

func Load() Config {
	cfg := Config{
		Port:           envOr("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		RedisURL:       envOr("REDIS_URL", "redis://redis-master.redis.svc.cluster.local:6379/0"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL: envOr("TELEGRAM_API_URL", "https://api.telegram.org"),
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		SlackToken:     os.Getenv("SLACK_BOT_TOKEN"),
		SlackAPIURL:    os.Getenv("SLACK_API_URL"),
		DefaultLang:    envOr("DEFAULT_LANG", "eng"),

		EthRPCURL:          os.Getenv("ETH_RPC_URL"),
		ChainGenesis:       envTime("CHAIN_GENESIS", time.Date(2015, 7, 30, 15, 26, 13, 0, time.UTC)),
		PriceSymbols:       envList("PRICE_SYMBOLS", "BTC,ETH"),
		LiquidationSymbols: envList("LIQUIDATION_SYMBOLS", "BTC,ETH"),

		PricePeriod:       envDuration("PRICE_PERIOD", time.Minute),
		FearGreedPeriod:   envDuration("FEAR_GREED_PERIOD", time.Hour),
		BlockPeriod:       envDuration("BLOCK_PERIOD", 30*time.Second),
		LiquidationPeriod: envDuration("LIQUIDATION_PERIOD", 10*time.Second),

		BlockStuckAfter:      envDuration("BLOCK_STUCK_AFTER", 5*time.Minute),
		PriceDropThreshold:   envFloat("PRICE_DROP_THRESHOLD", 0.10),
		PriceDropCooldown:    envDuration("PRICE_DROP_COOLDOWN", time.Hour),
		SentimentDwell:       envDuration("SENTIMENT_DWELL", 12*time.Hour),
		LiquidationMinUSD:    envFloat("LIQUIDATION_MIN_USD", 1_000_000),
		LiquidationCooldown:  envDuration("LIQUIDATION_COOLDOWN", 10*time.Minute),
		LiquidationMaxAlerts: envInt("LIQUIDATION_MAX_ALERTS", 5),

		DigestCron:     envOr("DIGEST_CRON", "0 8 * * *"),
		DigestTimezone: envOr("DIGEST_TZ", "Asia/Hong_Kong"),

		SendInterval: envDuration("SEND_INTERVAL", 75*time.Millisecond),
		UserMaxHits:  envInt("USER_MAX_MESSAGES", 20),
		UserWindow:   envDuration("USER_RATE_WINDOW", 10*time.Minute),
		UserSuppress: envDuration("USER_RATE_SUPPRESS", time.Hour),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	channels, err := ParseChannels(os.Getenv("STATIC_CHANNELS"), cfg.DefaultLang)
	if err != nil {
		slog.Warn("invalid STATIC_CHANNELS entries skipped", "error", err)
	}
	cfg.StaticChannels = channels

	return cfg
}

// ParseChannels reads "platform:id[:lang]" entries separated by commas.
// Valid entries are returned even when others fail.
func ParseChannels(s, defaultLang string) ([]messenger.Channel, error) {
	var out []messenger.Channel
	var errs []error
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[1] == "" {
			errs = append(errs, fmt.Errorf("channel %q: want platform:id[:lang]", item))
			continue
		}
		p, err := messenger.ParsePlatform(parts[0])
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %q: %w", item, err))
			continue
		}
		ch := messenger.Channel{Platform: p, ID: parts[1], Lang: defaultLang, Static: true}
		if len(parts) == 3 && parts[2] != "" {
			ch.Lang = parts[2]
		}
		out = append(out, ch)
	}
	return out, errors.Join(errs...)
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"DISCORD_BOT_TOKEN":  &cfg.DiscordToken,
		"SLACK_BOT_TOKEN":    &cfg.SlackToken,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"DATABASE_URL":       &cfg.DatabaseURL,
		"ETH_RPC_URL":        &cfg.EthRPCURL,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func envTime(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		slog.Warn("invalid RFC3339 time, using default", "key", key, "value", v)
		return fallback
	}
	return t
}

func envList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(envOr(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
