package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/consent"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
)

func TestQuotaFreeTierCeiling(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for to := uint64(2); to <= 4; to++ {
		h.like(t, 1, to)
	}

	_, err := h.pipeline.ExpressInterest(ctx, 1, 5, consent.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)
	_, err = h.pipeline.ExpressInterest(ctx, 1, 5, consent.KindSuperInterest)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)

	// rejected signals are not recorded
	assert.Equal(t, int64(3), h.count(t, &db.Signal{}))

	// passes are never limited
	out, err := h.pipeline.ExpressInterest(ctx, 1, 5, consent.KindPass)
	require.NoError(t, err)
	assert.Equal(t, consent.ResultRecorded, out.Result)

	usage, err := h.quota.Usage(ctx, 1, consent.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Used)
	assert.Equal(t, int64(0), usage.Remaining())
}

func TestQuotaResetsAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for to := uint64(2); to <= 4; to++ {
		h.like(t, 1, to)
	}
	require.ErrorIs(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike), svcErr.ErrQuotaExceeded)

	h.clock.Set(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike))
}

func TestQuotaPaidTierUnlimited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.setTier(t, 1, "Gold")

	for to := uint64(2); to <= 8; to++ {
		h.like(t, 1, to)
	}

	usage, err := h.quota.Usage(ctx, 1, "gold")
	require.NoError(t, err)
	assert.True(t, usage.Unlimited)
	assert.Equal(t, int64(7), usage.Used)
	assert.Equal(t, int64(-1), usage.Remaining())
}

func TestQuotaCustomCeilings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withCeilings(map[string]int{"FREE": 1, "plus": 2}))
	h.setTier(t, 2, "plus")

	h.like(t, 1, 3)
	_, err := h.pipeline.ExpressInterest(ctx, 1, 4, consent.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)

	h.like(t, 2, 3)
	h.like(t, 2, 4)
	_, err = h.pipeline.ExpressInterest(ctx, 2, 5, consent.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)

	limit, ok := h.quota.Ceiling("Plus")
	assert.True(t, ok)
	assert.Equal(t, 2, limit)
	_, ok = h.quota.Ceiling("gold")
	assert.False(t, ok)
}

func TestQuotaWithRedisCounter(t *testing.T) {
	ctx := context.Background()
	counter := newRedisCounter(t)
	h := newHarness(t, withCounter(counter))

	// first read seeds the cache from the store
	require.NoError(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike))
	n, cached, err := counter.GetDailyLikes(ctx, 1, start)
	require.NoError(t, err)
	require.True(t, cached)
	assert.Equal(t, int64(0), n)

	// every positive append drops the cached count
	h.like(t, 1, 2)
	_, cached, err = counter.GetDailyLikes(ctx, 1, start)
	require.NoError(t, err)
	assert.False(t, cached)

	h.like(t, 1, 3)
	h.like(t, 1, 4)
	_, err = h.pipeline.ExpressInterest(ctx, 1, 5, consent.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrQuotaExceeded)

	n, cached, err = counter.GetDailyLikes(ctx, 1, start)
	require.NoError(t, err)
	require.True(t, cached)
	assert.Equal(t, int64(3), n)
}

// Authorize and RecordSignal called as separate steps must still hit the
// ceiling once the count is cached.
func TestQuotaSeparateAuthorizeAndRecord(t *testing.T) {
	ctx := context.Background()
	counter := newRedisCounter(t)
	h := newHarness(t, withCounter(counter))

	admitted := 0
	for to := uint64(2); to <= 9; to++ {
		if err := h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike); err != nil {
			require.ErrorIs(t, err, svcErr.ErrQuotaExceeded)
			continue
		}
		admitted++
		_, err := h.ledger.RecordSignal(ctx, 1, to, consent.KindLike)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, admitted)
	assert.Equal(t, int64(3), h.count(t, &db.Signal{}))
}

// A refill that lost a race with an append caches a count one short. The
// next positive append drops it, so the error does not carry forward.
func TestQuotaStaleRefillDoesNotAccumulate(t *testing.T) {
	ctx := context.Background()
	counter := newRedisCounter(t)
	h := newHarness(t, withCounter(counter))

	for to := uint64(2); to <= 4; to++ {
		_, err := h.ledger.RecordSignal(ctx, 1, to, consent.KindLike)
		require.NoError(t, err)
	}
	require.NoError(t, counter.SetDailyLikes(ctx, 1, start, 2))

	// the stale value admits one extra, as a concurrent request would
	require.NoError(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike))
	_, err := h.ledger.RecordSignal(ctx, 1, 5, consent.KindLike)
	require.NoError(t, err)

	assert.ErrorIs(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike), svcErr.ErrQuotaExceeded)
	n, cached, err := counter.GetDailyLikes(ctx, 1, start)
	require.NoError(t, err)
	require.True(t, cached)
	assert.Equal(t, int64(4), n)
}

func TestQuotaPassDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	counter := newRedisCounter(t)
	h := newHarness(t, withCounter(counter))

	require.NoError(t, h.quota.Authorize(ctx, 1, consent.TierFree, consent.KindLike))
	_, err := h.ledger.RecordSignal(ctx, 1, 2, consent.KindPass)
	require.NoError(t, err)

	_, cached, err := counter.GetDailyLikes(ctx, 1, start)
	require.NoError(t, err)
	assert.True(t, cached)
}
