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

func TestExpressInterestDirectMatch(t *testing.T) {
	h := newHarness(t)

	first := h.like(t, 1, 2)
	assert.Equal(t, consent.ResultRecorded, first.Result)
	assert.False(t, first.Mutual)
	assert.NotZero(t, first.SignalID)

	second := h.like(t, 2, 1)
	assert.True(t, second.Mutual)
	assert.Equal(t, consent.ResultMatched, second.Result)
	assert.NotZero(t, second.MatchID)
	assert.False(t, second.Duplicate)

	// liking again later does not create a second match
	h.clock.Advance(time.Hour)
	third := h.like(t, 1, 2)
	assert.Equal(t, consent.ResultMatched, third.Result)
	assert.Equal(t, second.MatchID, third.MatchID)
	assert.True(t, third.Duplicate)

	assert.Equal(t, int64(1), h.count(t, &db.Match{}))
	assert.Equal(t, int64(2), h.count(t, &db.PendingNotificationEvent{}))
}

func TestExpressInterestOrderDoesNotMatter(t *testing.T) {
	pairs := map[string][2]uint64{
		"one_first": {1, 2},
		"two_first": {2, 1},
	}
	for name, order := range pairs {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.like(t, order[0], order[1])
			out := h.like(t, order[1], order[0])
			assert.Equal(t, consent.ResultMatched, out.Result)

			m, err := h.matches.GetByPair(context.Background(), 2, 1)
			require.NoError(t, err)
			assert.Equal(t, out.MatchID, m.ID)
			assert.Equal(t, uint64(1), m.UserA)
			assert.Equal(t, uint64(2), m.UserB)
		})
	}
}

func TestExpressInterestPassNeverMatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.like(t, 2, 1)
	out, err := h.pipeline.ExpressInterest(ctx, 1, 2, consent.KindPass)
	require.NoError(t, err)
	assert.Equal(t, consent.ResultRecorded, out.Result)
	assert.False(t, out.Mutual)
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))
}

func TestExpressInterestRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.pipeline.ExpressInterest(ctx, 1, 1, consent.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrSelfAction)

	_, err = h.pipeline.ExpressInterest(ctx, 1, 2, consent.Kind("wink"))
	assert.ErrorIs(t, err, svcErr.ErrInvalidKind)

	assert.Equal(t, int64(0), h.count(t, &db.Signal{}))
}

// A (free, two likes today) likes B, who liked A before and whose guardian
// must approve.
func TestExpressInterestGuardianScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const a, b, guardian = uint64(1), uint64(2), uint64(9)
	h.requireGuardian(t, b, guardian)

	h.like(t, b, a)
	h.like(t, a, 3)
	h.like(t, a, 4)

	out := h.like(t, a, b)
	assert.True(t, out.Mutual)
	assert.Equal(t, consent.ResultPendingApproval, out.Result)
	assert.NotZero(t, out.RequestID)
	assert.Zero(t, out.MatchID)

	usage, err := h.quota.Usage(ctx, a, consent.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Used)
	assert.Equal(t, 3, usage.Limit)

	req, err := h.intros.Get(ctx, out.RequestID)
	require.NoError(t, err)
	assert.Equal(t, db.IntroPending, req.Status)
	assert.Equal(t, b, req.RecipientID)
	assert.Equal(t, int64(1), h.count(t, &db.IntroductionRequest{}))
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))
	assert.Equal(t, int64(0), h.count(t, &db.PendingNotificationEvent{}))

	h.clock.Advance(30 * time.Minute)
	dec, err := h.gate.Decide(ctx, out.RequestID, true, "")
	require.NoError(t, err)
	assert.Equal(t, db.IntroApproved, dec.Request.Status)
	require.NotNil(t, dec.Match)

	m, err := h.matches.GetByPair(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, dec.Match.MatchID, m.ID)
	assert.Equal(t, int64(1), h.count(t, &db.Match{}))

	var events []db.PendingNotificationEvent
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 2)
	recipients := []uint64{events[0].RecipientUserID, events[1].RecipientUserID}
	assert.ElementsMatch(t, []uint64{a, b}, recipients)
}

func TestExpressInterestDeclinedPairStaysDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.requireGuardian(t, 2, 9)

	h.like(t, 1, 2)
	out := h.like(t, 2, 1)
	require.Equal(t, consent.ResultPendingApproval, out.Result)

	_, err := h.gate.Decide(ctx, out.RequestID, false, "not now")
	require.NoError(t, err)

	again := h.like(t, 1, 2)
	assert.Equal(t, consent.ResultDeclined, again.Result)
	assert.Equal(t, out.RequestID, again.RequestID)
	assert.Equal(t, int64(1), h.count(t, &db.IntroductionRequest{}))
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))
}

func TestExpressInterestRepeatedWhilePending(t *testing.T) {
	h := newHarness(t)
	h.requireGuardian(t, 2, 9)

	h.like(t, 1, 2)
	first := h.like(t, 2, 1)
	second := h.like(t, 1, 2)

	assert.Equal(t, consent.ResultPendingApproval, second.Result)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.True(t, second.Duplicate)
	assert.Equal(t, int64(1), h.count(t, &db.IntroductionRequest{}))
}

func TestPipelineMaterializeRequiresMutualInterest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.pipeline.Materialize(ctx, 1, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotConsented)

	h.signal(t, 1, 2)
	_, err = h.pipeline.Materialize(ctx, 2, 1)
	assert.ErrorIs(t, err, svcErr.ErrNotConsented)
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))

	h.signal(t, 2, 1)
	first, err := h.pipeline.Materialize(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, uint64(1), first.UserA)

	again, err := h.pipeline.Materialize(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.MatchID, again.MatchID)

	_, err = h.pipeline.Materialize(ctx, 3, 3)
	assert.ErrorIs(t, err, svcErr.ErrInvalidTransition)
}

func TestPipelineMaterializeWaitsForGuardian(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.requireGuardian(t, 2, 9)
	h.signal(t, 1, 2)
	h.signal(t, 2, 1)

	_, err := h.pipeline.Materialize(ctx, 1, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotConsented)
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))
	require.Equal(t, int64(1), h.count(t, &db.IntroductionRequest{}))

	req, err := h.intros.GetByPair(ctx, 1, 2)
	require.NoError(t, err)
	dec, err := h.gate.Decide(ctx, req.ID, true, "")
	require.NoError(t, err)
	require.NotNil(t, dec.Match)

	m, err := h.pipeline.Materialize(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, m.Duplicate)
	assert.Equal(t, dec.Match.MatchID, m.MatchID)
	assert.Equal(t, int64(1), h.count(t, &db.Match{}))
}

func TestPipelineMaterializeRejectedPair(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.requireGuardian(t, 2, 9)
	h.signal(t, 3, 2)
	h.signal(t, 2, 3)

	res, err := h.pipeline.Resolve(ctx, 3, 2)
	require.NoError(t, err)
	_, err = h.gate.Decide(ctx, res.RequestID, false, "")
	require.NoError(t, err)

	_, err = h.pipeline.Materialize(ctx, 2, 3)
	assert.ErrorIs(t, err, svcErr.ErrNotConsented)
	assert.Equal(t, int64(0), h.count(t, &db.Match{}))
}

func TestPipelineResolveRequiresMutualInterest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.requireGuardian(t, 2, 9)
	h.signal(t, 1, 2)

	_, err := h.pipeline.Resolve(ctx, 1, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotConsented)
	assert.Equal(t, int64(0), h.count(t, &db.IntroductionRequest{}))

	h.signal(t, 2, 1)
	res, err := h.pipeline.Resolve(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, consent.ResolutionNeedsApproval, res.Kind)
}
