package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-saga-service/internal/app"
	"quiz-saga-service/internal/config"
	"quiz-saga-service/internal/eventbus"
	"quiz-saga-service/internal/infra/catalog"
	"quiz-saga-service/internal/infra/memory"
	natsbus "quiz-saga-service/internal/infra/nats"
	pginfra "quiz-saga-service/internal/infra/postgres"
	redisinfra "quiz-saga-service/internal/infra/redis"
	transport "quiz-saga-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the service.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the saga coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// An unmapped event type is a deploy-time mistake; refuse to start.
	if err := eventbus.ValidateSubjects(); err != nil {
		return err
	}

	serviceID := cfg.Service.ID
	if serviceID == "" {
		serviceID = "quiz-saga"
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// The bus handle is acquired once here and injected everywhere;
	// reconnects happen behind it.
	var bus eventbus.Bus
	if cfg.Nats.URL != "" {
		bus = natsbus.NewBus(cfg.Nats.URL, serviceID, logger)
	} else {
		logger.Warn("no nats url configured, using in-process bus")
		bus = memory.NewBus(logger)
	}
	if err := bus.Connect(ctx); err != nil {
		return err
	}
	defer bus.Close()

	var stats app.StatsStore
	var eventLog app.EventLog
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		stats = pginfra.NewStatsStore(pool)

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bundb := bun.NewDB(sqldb, pgdialect.New())
		defer bundb.Close()
		eventLog = pginfra.NewEventLog(bundb)
	} else {
		logger.Warn("no postgres url configured, stats are in-memory only")
		stats = memory.NewStatsStore()
	}

	var leaderboardStore app.LeaderboardStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		leaderboardStore = redisinfra.NewLeaderboardStore(client)
	} else {
		leaderboardStore = memory.NewLeaderboardStore()
	}

	var questionCatalog app.QuestionCatalog
	if cfg.Catalog.BaseURL != "" {
		questionCatalog = catalog.NewClient(
			cfg.Catalog.BaseURL,
			config.DurationOr(cfg.Catalog.TTL, 10*time.Minute))
	}

	saga := app.NewSaga(bus, stats, questionCatalog, eventLog, serviceID, logger)
	saga.SetEnrichTimeout(config.DurationOr(cfg.Catalog.Timeout, app.DefaultEnrichTimeout))

	achievements := app.NewAchievementReactor(bus, memory.NewAchievementStore(), serviceID, logger)
	if err := achievements.Start(); err != nil {
		return err
	}
	defer achievements.Stop()

	leaderboard := app.NewLeaderboardReactor(bus, leaderboardStore, cfg.Leaderboard.TopN, logger)
	if err := leaderboard.Start(); err != nil {
		return err
	}
	defer leaderboard.Stop()

	handler := transport.NewHandler(saga, stats, leaderboard, serviceID, logger)
	wsHandler := transport.NewWSHandler(leaderboard, bus, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting saga service", zap.String("port", finalPort), zap.String("serviceId", serviceID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
