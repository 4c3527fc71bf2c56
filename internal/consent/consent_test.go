package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/config"
	"github.com/oggyb/muzz-consent/internal/consent"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/db/dbtest"
	"github.com/oggyb/muzz-consent/internal/logger"
	"github.com/oggyb/muzz-consent/internal/repository"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	db           *gorm.DB
	clock        *clock.Fake
	profiles     *repository.ProfileRepository
	signals      *repository.SignalRepository
	intros       *repository.IntroductionRepository
	matches      *repository.MatchRepository
	ledger       *consent.Ledger
	quota        *consent.QuotaEnforcer
	detector     *consent.Detector
	gate         *consent.Gate
	materializer *consent.Materializer
	pipeline     *consent.Pipeline
}

type option func(*harnessConfig)

type harnessConfig struct {
	ceilings map[string]int
	counter  consent.DailyCounter
}

func withCeilings(c map[string]int) option {
	return func(h *harnessConfig) { h.ceilings = c }
}

func withCounter(c consent.DailyCounter) option {
	return func(h *harnessConfig) { h.counter = c }
}

// newHarness wires the full pipeline over sqlite with users 1..10.
func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	hc := harnessConfig{ceilings: map[string]int{consent.TierFree: 3}}
	for _, o := range opts {
		o(&hc)
	}

	database := dbtest.Open(t)
	dbtest.CreateUsers(t, database, 10)

	log := logger.Discard()
	clk := clock.NewFake(start)
	h := &harness{
		db:       database,
		clock:    clk,
		profiles: repository.NewProfileRepository(database),
		signals:  repository.NewSignalRepository(database),
		intros:   repository.NewIntroductionRepository(database),
		matches:  repository.NewMatchRepository(database),
	}
	h.ledger = consent.NewLedger(h.signals, hc.counter, clk, log)
	h.quota = consent.NewQuotaEnforcer(h.signals, hc.counter, hc.ceilings, clk, log)
	h.detector = consent.NewDetector(h.signals)
	h.materializer = consent.NewMaterializer(h.matches, h.profiles, clk, log)
	h.gate = consent.NewGate(h.profiles, h.intros, h.materializer, clk, log)
	h.pipeline = consent.NewPipeline(h.profiles, h.matches, h.ledger, h.quota, h.detector, h.gate, h.materializer, log)
	return h
}

func newRedisCounter(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg)
}

func (h *harness) requireGuardian(t *testing.T, ward, guardian uint64) {
	t.Helper()
	g := guardian
	require.NoError(t, h.profiles.UpsertProfile(context.Background(), &db.Profile{
		UserID:                  ward,
		Tier:                    consent.TierFree,
		RequireGuardianApproval: true,
		GuardianUserID:          &g,
		GuardianContact:         "wali@example.com",
	}))
}

func (h *harness) setTier(t *testing.T, user uint64, tier string) {
	t.Helper()
	require.NoError(t, h.profiles.UpsertProfile(context.Background(), &db.Profile{UserID: user, Tier: tier}))
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func (h *harness) like(t *testing.T, from, to uint64) consent.Outcome {
	t.Helper()
	out, err := h.pipeline.ExpressInterest(context.Background(), from, to, consent.KindLike)
	require.NoError(t, err)
	return out
}

// signal appends a like without quota or matching.
func (h *harness) signal(t *testing.T, from, to uint64) {
	t.Helper()
	_, err := h.ledger.RecordSignal(context.Background(), from, to, consent.KindLike)
	require.NoError(t, err)
}
