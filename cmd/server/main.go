package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-consent/internal/app"
	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/config"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/logger"
	"github.com/oggyb/muzz-consent/internal/notify"
	"github.com/oggyb/muzz-consent/internal/server"
	"github.com/oggyb/muzz-consent/internal/service/consent"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	if err := cfg.LoadQuotaFile(); err != nil {
		log.Error("failed to load quota config", "err", err)
		os.Exit(1)
	}
	log.Info("quota ceilings", "ceilings", cfg.Quota.Ceilings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, log, clock.Real())

	registrars := []server.Registrar{
		consent.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartGRPCServer(ctx, cfg, log, registrars...)
	})

	g.Go(func() error {
		sqlDB, err := database.DB()
		if err != nil {
			return err
		}
		handler := server.NewOpsHandler(map[string]server.Checker{
			"db":    sqlDB.PingContext,
			"redis": redisCache.Ping,
		})
		return server.StartOpsServer(ctx, cfg.Metrics.Addr, handler, logger.ForComponent("ops"))
	})

	if cfg.Batcher.Enabled {
		batcher := appCtx.NewBatcher(appCtx.NewSender())
		g.Go(func() error {
			return notify.NewScheduler(batcher, cfg.Batcher.Interval, logger.ForComponent("batcher")).Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
