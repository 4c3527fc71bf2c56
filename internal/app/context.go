package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/config"
)

// AppContext holds shared dependencies (Config, DB, Redis, Logger, Clock)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Clock      clock.Clock
}

// New creates a new AppContext. A nil clock means the wall clock; a nil
// Redis cache disables the quota counter cache and the batcher lock.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, clk clock.Clock) *AppContext {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg == nil {
		cfg = config.New()
	}
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Clock:      clk,
	}
}
