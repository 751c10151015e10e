// Package app initializes and orchestrates the main components of the
// analytics refresh service. It wires together the configuration, database,
// notification queue, lock backend, refreshers, listener, poller, and HTTP
// server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/config"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/db"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/lock"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/notification"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/refresh"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/server"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/storage"
)

// App holds the main application components.
type App struct {
	cfg     *config.Config
	server  *server.Server
	poller  *notification.Poller
	logger  *slog.Logger
	redis   *redis.Client
	cleanup func()
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing analytics refresh service",
		"refresh_delay_seconds", cfg.RefreshDelaySeconds,
		"max_workers", cfg.MaxWorkers,
		"blacklisted_accounts", len(cfg.AccountsBlacklist),
	)

	ignoredGroups, err := parseIgnoredGroups(cfg.IgnoredGroups)
	if err != nil {
		return nil, err
	}

	database, dbCleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	queue := notification.NewPostgresQueue(database.DB)
	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockRetryDelay, logger)

	listener := refresh.NewListener(
		queue,
		locker,
		storage.NewRecordIDLookup(database.DB),
		storage.NewInvoiceStateLookup(database.DB),
		refresh.Refreshers{
			All:                storage.NewAllRefresher(database.DB),
			Subscriptions:      storage.NewSubscriptionRefresher(database.DB),
			Overdue:            storage.NewOverdueRefresher(database.DB),
			Invoices:           storage.NewInvoiceRefresher(database.DB),
			InvoiceAndPayments: storage.NewInvoicePaymentRefresher(database.DB),
			Fields:             storage.NewFieldRefresher(database.DB),
		},
		refresh.Options{
			RefreshDelay:      time.Duration(cfg.RefreshDelaySeconds) * time.Second,
			LockAttempts:      cfg.LockAttempts,
			AccountsBlacklist: cfg.AccountsBlacklist,
			IgnoredGroups:     ignoredGroups,
		},
		logger,
	)

	poller := notification.NewPoller(queue, listener.HandleReady, cfg.PollInterval, cfg.PollBatchSize, cfg.MaxWorkers, logger)
	httpServer := server.NewServer(cfg.ServerPort, listener, logger)

	logger.Info("analytics refresh service initialized successfully")
	return &App{
		cfg:     cfg,
		server:  httpServer,
		poller:  poller,
		logger:  logger,
		redis:   redisClient,
		cleanup: dbCleanup,
	}, nil
}

// Start launches the notification poller and runs the HTTP server, blocking
// until the server stops.
func (a *App) Start(ctx context.Context) error {
	a.poller.Start(ctx)
	return a.server.Start()
}

// Stop shuts down the application cleanly: no new events, then drain the
// poller, then close connections.
func (a *App) Stop() error {
	a.logger.Info("shutting down analytics refresh service")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.poller.Stop()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("error closing redis connection", "error", err)
	}
	a.cleanup()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("analytics refresh service stopped")
	return nil
}

func parseIgnoredGroups(names []string) ([]refresh.Group, error) {
	groups := make([]refresh.Group, 0, len(names))
	for _, name := range names {
		g, err := refresh.ParseGroup(name)
		if err != nil {
			return nil, fmt.Errorf("invalid IGNORED_GROUPS entry: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}
