package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/tournament-live/config"
	"github.com/Dosada05/tournament-live/db"
	"github.com/Dosada05/tournament-live/feeds"
	"github.com/Dosada05/tournament-live/handlers"
	"github.com/Dosada05/tournament-live/live"
	"github.com/Dosada05/tournament-live/middleware"
	"github.com/Dosada05/tournament-live/models"
	"github.com/Dosada05/tournament-live/repositories"
	"github.com/Dosada05/tournament-live/rooms"
	api "github.com/Dosada05/tournament-live/routes"
	"github.com/Dosada05/tournament-live/services"
	"github.com/Dosada05/tournament-live/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return 1
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("live_store", cfg.LiveStore))

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Хранилища живых матчей
	var (
		store    storage.SnapshotStore
		fixtures interface {
			live.FixtureLookup
			live.ResultRecorder
		}
		rosters live.RosterLookup
	)
	switch cfg.LiveStore {
	case config.StoreMemory:
		memFixtures := repositories.NewMemoryFixtureRepository()
		for _, f := range cfg.Live.Fixtures {
			memFixtures.Register(models.MatchFixture{
				MatchID:      f.MatchID,
				TournamentID: f.TournamentID,
				HomeTeamID:   f.HomeTeamID,
				AwayTeamID:   f.AwayTeamID,
				Status:       models.MatchStatusScheduled,
			})
		}
		store, fixtures = repositories.NewMemoryMatchSnapshotRepository(), memFixtures
		if len(cfg.Live.Rosters) > 0 {
			rosters = repositories.NewMemoryRosterRepository(cfg.Live.Rosters)
		}
		logger.Warn("live store runs in memory, state is lost on restart", slog.Int("fixtures", len(cfg.Live.Fixtures)))
	default:
		dbOpts := db.DefaultOptions()
		dbOpts.MaxOpenConns = cfg.DBMaxOpenConns
		dbConn, err := db.Connect(startupCtx, cfg.DatabaseURL, dbOpts, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()

		store = repositories.NewPostgresMatchSnapshotRepository(dbConn)
		fixtures = repositories.NewPostgresTeamMatchRepository(dbConn)
		rosters = repositories.NewPostgresTournamentTeamRosterRepository(dbConn)
	}

	// Кэш снапшотов в Redis (опционально)
	if cfg.RedisAddr != "" {
		redisClient, err := storage.NewRedisClient(startupCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			return 1
		}
		defer closeRedis(redisClient, logger)
		store = storage.NewRedisSnapshotCache(redisClient, store, 0, logger)
		logger.Info("redis snapshot cache enabled", slog.String("addr", cfg.RedisAddr))
	}

	deps := live.Dependencies{
		Store:    store,
		Fixtures: services.NewFixtureLookup(fixtures),
		Results:  fixtures,
		Logger:   logger,
	}

	// Архив завершённых матчей в Cloudflare R2 (опционально)
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(startupCtx, r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			return 1
		}
		deps.Archiver = storage.NewMatchArchiver(uploader, logger)
		logger.Info("Cloudflare R2 match archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	// Лента применённых событий в AMQP (опционально)
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	var amqpFeed *feeds.AMQPPublisher
	if cfg.AMQPURL != "" {
		amqpFeed, err = feeds.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, 0, logger)
		if err != nil {
			logger.Error("failed to connect to AMQP broker", slog.Any("error", err))
			return 1
		}
		go amqpFeed.Run(feedCtx)
		deps.Events = amqpFeed
		logger.Info("AMQP event feed enabled", slog.String("exchange", cfg.AMQPExchange))
	}

	// Движок живых матчей
	hub := rooms.NewHub(logger)
	deps.Rooms = hub
	opts := live.DefaultOptions()
	opts.Validator = live.ValidatorOptions{
		MaxMinute:                 cfg.Live.MaxMinute,
		MinuteTolerance:           cfg.Live.MinuteTolerance,
		CoachSubstitutionRequests: cfg.Live.CoachSubstitutionRequests,
	}
	opts.SessionIdleTimeout = cfg.Live.SessionIdleTimeout
	opts.MatchIdleTimeout = cfg.Live.MatchIdleTimeout
	opts.TickInterval = cfg.Live.TickInterval
	opts.HousekeepingInterval = cfg.Live.HousekeepingInterval
	engine := live.NewEngine(deps, opts)

	liveService := services.NewLiveMatchService(engine, hub, rosters, logger)
	logger.Info("live engine initialized")

	// Данные трекинга из MQTT (опционально)
	var tracking *feeds.MQTTTrackingSubscriber
	if cfg.MQTTBroker != "" {
		tracking, err = feeds.NewMQTTTrackingSubscriber(feeds.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTTopic,
		}, liveService, logger)
		if err == nil {
			err = tracking.Connect()
		}
		if err != nil {
			logger.Error("failed to start MQTT tracking subscriber", slog.Any("error", err))
			return 1
		}
		logger.Info("MQTT tracking feed enabled", slog.String("topic", cfg.MQTTTopic))
	}

	// Инициализация обработчиков HTTP
	tokenAuth := middleware.NewTokenAuth(cfg.JWTSecretKey, logger)
	liveHandler := handlers.NewLiveMatchHandler(liveService)
	webSocketHandler := handlers.NewWebSocketHandler(liveService, tokenAuth, cfg.Live.SendBufferSize, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.CORSAllowedOrigins, tokenAuth, liveHandler, webSocketHandler)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			exitCode = 1
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		exitCode = 1
	}
	if tracking != nil {
		tracking.Disconnect()
	}

	// снапшоты всех загруженных матчей сохраняются до закрытия хранилищ
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error("live engine shutdown failed", slog.Any("error", err))
		exitCode = 1
	} else {
		logger.Info("live engine stopped")
	}

	stopFeed()
	if amqpFeed != nil {
		if err := amqpFeed.Close(shutdownCtx); err != nil {
			logger.Error("failed to close AMQP feed", slog.Any("error", err))
		}
	}

	logger.Info("application exited")
	return exitCode
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close redis client", slog.Any("error", err))
	}
}
