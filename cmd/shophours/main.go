package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shophours/internal/api"
	"shophours/internal/cache"
	"shophours/internal/config"
	"shophours/internal/db"
	"shophours/internal/events"
	"shophours/internal/health"
	"shophours/internal/metrics"
	"shophours/internal/override"
	"shophours/internal/status"
	"shophours/internal/watch"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("SHOPHOURS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	bus := events.NewBus()
	bus.Subscribe(database.RecordEvent, events.OverrideSet, events.OverrideCleared, events.OverrideExpired, events.ScheduleUpdated)

	var (
		schedules status.ScheduleStore = database
		rdb       *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		schedules = cache.NewScheduleCache(database, rdb, cfg.Redis.CacheTTL, &logger)
	}

	overrides := override.NewManager(database, bus, &logger)
	svc := status.NewService(schedules, overrides, bus, status.Config{
		DefaultTimeZone:           cfg.Shops.DefaultTimeZone,
		ExpireOverridesAtMidnight: cfg.Overrides.ExpireAtMidnight,
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Shops.SeedPath != "" {
		err := config.WatchShops(ctx, cfg.Shops.SeedPath, cfg.Shops.ReloadInterval, &logger, func(u config.ShopsUpdate) {
			seedShops(ctx, svc, u, cfg.Shops, &logger)
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load shops config")
		}
	}

	var wg sync.WaitGroup

	backup := db.NewBackupService(database, cfg.Backup, &logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		backup.Start(ctx)
	}()

	if cfg.Watch.Enabled {
		refresher := watch.NewRefresher(watch.Config{Interval: cfg.Watch.Interval, Shops: cfg.Watch.Shops}, svc, database, &logger)
		refresher.Start()
		defer refresher.Stop()
	}

	pingDB := func(ctx context.Context) error { return database.PingContext(ctx) }
	pingRedis := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	server := api.NewHTTPServer(cfg.Server, cfg.API, svc, &logger).WithAudit(database)
	server.AddReadinessCheck("db", pingDB)
	if rdb != nil {
		server.AddReadinessCheck("redis", pingRedis)
	}
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		server.WithMetrics()
	}

	if cfg.Monitoring.GRPCHealthPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Monitoring.GRPCHealthPort))
		if err != nil {
			logger.Fatal().Err(err).Msg("grpc health listen error")
		}
		hs := health.NewGRPCHealth(10*time.Second, &logger)
		hs.AddCheck("db", pingDB)
		if rdb != nil {
			hs.AddCheck("redis", pingRedis)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.Serve(ctx, lis); err != nil {
				logger.Error().Err(err).Msg("grpc health server error")
			}
		}()
	}

	logger.Info().Msg("shophours started")
	if err := server.Start(ctx, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("http server error")
		stop()
	}
	wg.Wait()
	logger.Info().Msg("shophours stopped")
}

// seedShops writes the schedules of the shops that changed in shops.yaml.
// Existing schedules are kept unless overwrite_on_seed is set, so API edits
// survive restarts. Shops dropped from the file keep their stored schedule.
func seedShops(ctx context.Context, svc *status.Service, u config.ShopsUpdate, settings config.ShopsSettings, logger *zerolog.Logger) {
	for _, id := range u.Removed {
		logger.Info().Str("shop_id", id).Msg("shop removed from seed file, stored schedule kept")
	}
	for _, id := range u.Changed {
		shop := u.Config.GetShopByID(id)
		if shop == nil {
			continue
		}
		ws, err := u.Config.WeeklySchedule(*shop, settings.DefaultTimeZone)
		if err != nil {
			logger.Error().Err(err).Str("shop_id", id).Msg("invalid seed schedule")
			continue
		}
		written, err := svc.EnsureSchedule(ctx, id, ws, settings.OverwriteOnSeed)
		if err != nil {
			logger.Error().Err(err).Str("shop_id", id).Msg("failed to seed schedule")
			continue
		}
		if written {
			logger.Info().Str("shop_id", id).Str("name", shop.Name).Msg("seeded schedule")
		}
	}
}
