package main

import (
	"os"

	"github.com/oggyb/muzz-consent/internal/config"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/logger"
)

func main() {
	cfg := config.New()
	cfg.Log.Component = "seed"
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if err := db.SeedTestData(database); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	for _, m := range []struct {
		table string
		model any
	}{
		{"users", &db.User{}},
		{"profiles", &db.Profile{}},
		{"notification_preferences", &db.NotificationPreference{}},
		{"signals", &db.Signal{}},
	} {
		var n int64
		if err := database.Model(m.model).Count(&n).Error; err != nil {
			log.Warn("count failed", "table", m.table, "err", err)
			continue
		}
		log.Info("seeded", "table", m.table, "rows", n)
	}
}
