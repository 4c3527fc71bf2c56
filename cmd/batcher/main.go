package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oggyb/muzz-consent/internal/app"
	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/config"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		types     []string
		dwell     time.Duration
		maxGroups int
		noLock    bool
	)

	cmd := &cobra.Command{
		Use:   "batcher",
		Short: "Flush pending notification events as digests, once",
		Long: `Runs a single notification batcher pass and prints its summary as JSON.
Intended for an external scheduler such as cron; the server runs the same
pass on BATCHER_INTERVAL when BATCHER_ENABLED is set.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if cmd.Flags().Changed("types") {
				cfg.Batcher.Types = types
			}
			if cmd.Flags().Changed("dwell") {
				cfg.Batcher.Dwell = dwell
			}
			if cmd.Flags().Changed("max-groups") {
				cfg.Batcher.MaxGroups = maxGroups
			}

			cfg.Log.Component = "batcher"
			logger.InitFromConfig(cfg)
			log := logger.L()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := db.NewDB(cfg)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}

			var redisCache *cache.RedisCache
			if !noLock {
				redisCache = cache.NewRedisCache(cfg)
				if err := redisCache.Ping(ctx); err != nil {
					return fmt.Errorf("connect to redis: %w", err)
				}
			}

			appCtx := app.New(cfg, database, redisCache, log, clock.Real())
			summary, err := appCtx.NewBatcher(appCtx.NewSender()).Run(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringSliceVar(&types, "types", nil, "notification types to flush (default from BATCHER_TYPES)")
	cmd.Flags().DurationVar(&dwell, "dwell", 0, "minimum event age before it is sent (default from BATCHER_DWELL)")
	cmd.Flags().IntVar(&maxGroups, "max-groups", 0, "maximum digests per run (default from BATCHER_MAX_GROUPS)")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "skip the Redis run lock (single instance only)")
	cmd.SetContext(context.Background())
	return cmd
}
