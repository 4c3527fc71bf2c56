package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	Metrics struct {
		Addr string
	}

	// Quota maps a subscription tier to its daily ceiling of positive
	// signals. Tiers missing from the map are unlimited.
	Quota struct {
		File     string
		Ceilings map[string]int
	}

	Batcher struct {
		Enabled     bool
		Interval    time.Duration
		Dwell       time.Duration
		MaxGroups   int
		ScanLimit   int
		Previews    int
		SendTimeout time.Duration
		SendRate    float64
		LockTTL     time.Duration
		MaxAttempts int
		Types       []string
	}

	Delivery struct {
		WebhookURL string
	}
}

// quotaFile is the YAML layout of QUOTA_CONFIG_FILE.
//
//	ceilings:
//	  free: 3
//	  plus: 25
type quotaFile struct {
	Ceilings map[string]int `yaml:"ceilings"`
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "consent_server")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "muzz")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	cfg.Metrics.Addr = getEnvDefault("METRICS_ADDR", ":9090")

	// Quota
	cfg.Quota.File = os.Getenv("QUOTA_CONFIG_FILE")
	cfg.Quota.Ceilings = map[string]int{
		"free": getEnvInt("QUOTA_FREE_DAILY_LIMIT", 3),
	}

	// Notification batcher
	cfg.Batcher.Enabled = isTruthy(getEnvDefault("BATCHER_ENABLED", "true"))
	cfg.Batcher.Interval = getEnvDuration("BATCHER_INTERVAL", 3*time.Minute)
	cfg.Batcher.Dwell = getEnvDuration("BATCHER_DWELL", 2*time.Minute)
	cfg.Batcher.MaxGroups = getEnvInt("BATCHER_MAX_GROUPS", 200)
	cfg.Batcher.ScanLimit = getEnvInt("BATCHER_SCAN_LIMIT", 2000)
	cfg.Batcher.Previews = getEnvInt("BATCHER_PREVIEWS", 5)
	cfg.Batcher.SendTimeout = getEnvDuration("BATCHER_SEND_TIMEOUT", 10*time.Second)
	cfg.Batcher.SendRate = getEnvFloat("BATCHER_SEND_RATE", 20)
	cfg.Batcher.LockTTL = getEnvDuration("BATCHER_LOCK_TTL", 5*time.Minute)
	cfg.Batcher.MaxAttempts = getEnvInt("BATCHER_MAX_ATTEMPTS", 5)
	cfg.Batcher.Types = splitList(getEnvDefault("BATCHER_TYPES", "match,message,introduction"))

	cfg.Delivery.WebhookURL = os.Getenv("DELIVERY_WEBHOOK_URL")

	return cfg
}

// LoadQuotaFile merges tier ceilings from Quota.File over the env defaults.
// A missing File setting is not an error.
func (c *Config) LoadQuotaFile() error {
	if c.Quota.File == "" {
		return nil
	}
	raw, err := os.ReadFile(c.Quota.File)
	if err != nil {
		return fmt.Errorf("read quota config: %w", err)
	}
	var qf quotaFile
	if err := yaml.Unmarshal(raw, &qf); err != nil {
		return fmt.Errorf("parse quota config: %w", err)
	}
	if c.Quota.Ceilings == nil {
		c.Quota.Ceilings = map[string]int{}
	}
	for tier, limit := range qf.Ceilings {
		tier = strings.ToLower(strings.TrimSpace(tier))
		if limit < 0 {
			// negative means "unlimited"
			delete(c.Quota.Ceilings, tier)
			continue
		}
		c.Quota.Ceilings[tier] = limit
	}
	return nil
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnvDefault(k, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
