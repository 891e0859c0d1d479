// Command server runs the call-center gamification service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/api"
	"github.com/aimd54/callcenter-gamification/internal/api/dashboard"
	"github.com/aimd54/callcenter-gamification/internal/cache"
	"github.com/aimd54/callcenter-gamification/internal/catalog"
	"github.com/aimd54/callcenter-gamification/internal/config"
	"github.com/aimd54/callcenter-gamification/internal/mattermost"
	"github.com/aimd54/callcenter-gamification/internal/notify"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/calls"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/internal/service/leaderboard"
	"github.com/aimd54/callcenter-gamification/internal/service/scheduler"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := cfg.Gamification.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid gamification timezone: %w", err)
	}

	// Storage
	db, err := repository.NewDB(&cfg.Database.Postgres, log.Component("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Postgres.RunMigrations {
		if err := db.RunMigrations(log.Component("migrations")); err != nil {
			return err
		}
	} else if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	operatorRepo := repository.NewOperatorRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	callRepo := repository.NewCallRepository(db)

	if cfg.Gamification.GoalsFile != "" {
		seeded, err := catalog.NewSeeder(goalRepo, log.Component("catalog")).SeedFile(ctx, cfg.Gamification.GoalsFile)
		if err != nil {
			return fmt.Errorf("failed to seed goal catalog: %w", err)
		}
		log.Info().Int("goals", seeded).Str("file", cfg.Gamification.GoalsFile).Msg("Goal catalog seeded")
	}

	// Redis is optional: without it leaderboards are computed on every request and
	// notifications are not published to other instances.
	var (
		redisCache  *cache.RedisCache
		sharedCache cache.Cache
	)
	redisCache, err = cache.NewRedisCache(&cfg.Database.Redis, log.Component("redis"))
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache and pub/sub")
	} else {
		sharedCache = redisCache
		defer redisCache.Close()
	}

	// Services
	stats := statistics.NewService(callRepo, loc, log.Component("statistics"))
	boards := leaderboard.NewService(
		callRepo, operatorRepo, progressRepo,
		sharedCache, cfg.Leaderboard.CacheTTLDuration(), loc,
		log.Component("leaderboard"),
	)
	chat := mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))

	notifier := notify.NewMulti(notify.Target{Name: "leaderboard", Notifier: boards})
	var (
		hub      *notify.Hub
		realtime *notify.Handler
	)
	if cfg.Notifications.WebSocketEnabled {
		hub = notify.NewHub(log.Component("websocket"))
		go hub.Run(ctx)
		realtime = notify.NewHandler(hub, cfg.Notifications.AllowedOrigins, log.Component("websocket"))
		notifier.Add("websocket", hub)
	}
	if cfg.Notifications.RedisEnabled && redisCache != nil {
		notifier.Add("redis", notify.NewPublisher(redisCache, cfg.Notifications.RedisChannelPrefix))
	}
	if chat.Enabled() {
		notifier.Add("mattermost", chat)
	}

	engine := gamification.NewEngine(db, stats, notifier, cfg.Gamification.LevelBaseXP, log.Component("gamification"))
	callService := calls.NewService(operatorRepo, callRepo, engine, log.Component("calls")).WithBoards(boards)

	digest := scheduler.NewService(&cfg.Scheduler, boards, chat, log.Component("scheduler"))
	if err := digest.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer digest.Stop()

	// HTTP
	dash := dashboard.NewHandler(boards, callService, goalRepo, progressRepo, realtime, log.Component("api")).
		WithDefaultLimit(cfg.Leaderboard.DefaultLimit)

	checks := map[string]api.HealthCheck{
		"database": func(context.Context) error { return db.Health() },
	}
	if redisCache != nil {
		checks["redis"] = redisCache.Health
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.SetupRouter(cfg, dash, checks, log.Component("http")),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("environment", cfg.Server.Environment).
			Int("notifiers", notifier.Len()).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
