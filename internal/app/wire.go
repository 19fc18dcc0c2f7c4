package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/papertrade/dogebot/internal/blob/s3"
	"github.com/papertrade/dogebot/internal/cache/redis"
	"github.com/papertrade/dogebot/internal/config"
	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/ledger"
	"github.com/papertrade/dogebot/internal/notify"
	"github.com/papertrade/dogebot/internal/platform/binance"
	"github.com/papertrade/dogebot/internal/store/jsonfile"
	"github.com/papertrade/dogebot/internal/store/postgres"
	"github.com/papertrade/dogebot/internal/tracker"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Core engine
	Tracker *tracker.Tracker
	Store   *jsonfile.Store

	// Market data
	Prices     domain.PriceSource
	PriceCache domain.PriceCache // nil unless Redis is enabled

	// Eventing
	SignalBus   domain.SignalBus   // nil unless Redis is enabled
	RateLimiter domain.RateLimiter // nil unless Redis is enabled

	// History mirror and archival
	HistorySink domain.HistorySink // nil unless Postgres is enabled
	BlobReader  domain.BlobReader  // nil unless S3 is enabled
	Archiver    *s3blob.Archiver   // nil unless both Postgres and S3 are enabled

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- JSON snapshot store (always required) ---
	store, err := jsonfile.New(cfg.Tracker.DataDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: snapshot store: %w", err)
	}
	deps.Store = store

	// --- Redis (optional: price cache, signal bus, rate limiter) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- PostgreSQL history mirror (optional) ---
	var historyStore *postgres.HistoryStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		historyStore = postgres.NewHistoryStore(pgClient.Pool())
		deps.HistorySink = historyStore
	}

	// --- S3 blob storage (optional, archival) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobReader = s3blob.NewReader(s3Client)

		// The archiver reads from the Postgres mirror, so it exists only
		// when both backends are configured.
		if historyStore != nil {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), historyStore, logger)
		}
	}

	// --- Binance REST price source ---
	deps.Prices = binance.NewClient(cfg.Binance.RestHost)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Tracker ---
	led := ledger.New(cfg.Tracker.InitialBalance)
	tr := tracker.New(
		trackerOptions(cfg),
		led,
		store,
		deps.SignalBus,
		deps.HistorySink,
		logger,
	)
	if len(senders) > 0 {
		tr.SetNotifier(notify.NewTradeAlerts(deps.Notifier, cfg.Tracker.Symbol))
	}

	// Restore persisted state before anything ticks.
	if err := tr.LoadSnapshot(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load snapshot: %w", err)
	}

	// Strategies unknown to the snapshot start with their configured flag.
	saved := tr.BotStatus()
	for name, sc := range cfg.Strategies {
		if _, ok := saved[name]; !ok {
			tr.SetBotActive(name, sc.Active)
		}
	}
	deps.Tracker = tr

	return deps, cleanup, nil
}

// trackerOptions translates strategy configuration into tracker risk params.
func trackerOptions(cfg *config.Config) tracker.Options {
	risk := make(map[string]tracker.RiskParams, len(cfg.Strategies))
	for name, sc := range cfg.Strategies {
		risk[name] = tracker.RiskParams{
			StopLossPct:   sc.StopLossPct,
			TakeProfitPct: sc.TakeProfitPct,
			FeeRate:       sc.FeeRate,
			Quantity:      sc.Quantity,
		}
	}
	return tracker.Options{
		Risk: risk,
		Default: tracker.RiskParams{
			FeeRate:  0.00075,
			Quantity: 100,
		},
		ReverseOnSignal: cfg.Tracker.ReverseOnSignal,
	}
}
