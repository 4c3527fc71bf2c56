package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	svcErr "github.com/oggyb/muzz-consent/internal/errors"
)

var tracer = otel.Tracer("muzz.consent")

// Result is what an expressed interest led to.
type Result string

const (
	ResultRecorded        Result = "recorded"
	ResultMatched         Result = "matched"
	ResultPendingApproval Result = "pending_approval"
	ResultDeclined        Result = "declined"
)

// Outcome of Pipeline.ExpressInterest.
type Outcome struct {
	SignalID  uint64
	Mutual    bool
	Result    Result
	MatchID   uint64
	RequestID uint64
	// Duplicate is set when the match or request already existed.
	Duplicate bool
}

// Pipeline runs the swipe flow: quota, ledger, mutual detection, guardian
// gate and materialization, in that order.
type Pipeline struct {
	profiles     ProfileReader
	matches      MatchStore
	ledger       *Ledger
	quota        *QuotaEnforcer
	detector     *Detector
	gate         *Gate
	materializer *Materializer
	logger       *slog.Logger
}

func NewPipeline(profiles ProfileReader, matches MatchStore, ledger *Ledger, quota *QuotaEnforcer, detector *Detector, gate *Gate, materializer *Materializer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		profiles:     profiles,
		matches:      matches,
		ledger:       ledger,
		quota:        quota,
		detector:     detector,
		gate:         gate,
		materializer: materializer,
		logger:       logger,
	}
}

// ExpressInterest records from's signal toward to and carries a mutual
// positive pair as far as consent allows.
func (p *Pipeline) ExpressInterest(ctx context.Context, from, to uint64, kind Kind) (out Outcome, err error) {
	ctx, span := tracer.Start(ctx, "consent.ExpressInterest")
	span.SetAttributes(
		attribute.Int64("from", int64(from)),
		attribute.Int64("to", int64(to)),
		attribute.String("kind", string(kind)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("result", string(out.Result)))
		}
		span.End()
	}()

	if from == to {
		return out, fmt.Errorf("express interest: %w", svcErr.ErrSelfAction)
	}
	if !kind.Valid() {
		return out, fmt.Errorf("express interest %q: %w", kind, svcErr.ErrInvalidKind)
	}

	tier, err := p.profiles.GetSubscriptionTier(ctx, from)
	if err != nil {
		return out, fmt.Errorf("load tier: %w", err)
	}
	if err := p.quota.Authorize(ctx, from, tier, kind); err != nil {
		return out, err
	}

	out.SignalID, err = p.ledger.RecordSignal(ctx, from, to, kind)
	if err != nil {
		return out, err
	}
	out.Result = ResultRecorded

	if !kind.Positive() {
		return out, nil
	}

	out.Mutual, err = p.detector.CheckMutual(ctx, from, to)
	if err != nil || !out.Mutual {
		return out, err
	}

	res, err := p.gate.Resolve(ctx, from, to)
	if err != nil {
		return out, err
	}

	switch res.Kind {
	case ResolutionDirectMatch, ResolutionApproved:
		m, err := p.materializer.Materialize(ctx, from, to)
		if err != nil {
			return out, err
		}
		out.Result = ResultMatched
		out.MatchID = m.MatchID
		out.RequestID = res.RequestID
		out.Duplicate = m.Duplicate
	case ResolutionNeedsApproval:
		out.Result = ResultPendingApproval
		out.RequestID = res.RequestID
		out.Duplicate = res.Duplicate
	case ResolutionDeclined:
		out.Result = ResultDeclined
		out.RequestID = res.RequestID
		out.Duplicate = true
	}

	p.logger.Debug("interest expressed",
		"from", from,
		"to", to,
		"kind", kind,
		"result", out.Result,
		"match_id", out.MatchID,
		"request_id", out.RequestID,
	)
	return out, nil
}

// Resolve runs the guardian gate for a pair that has mutual interest. A
// pair without it gets ErrNotConsented and no request is created.
func (p *Pipeline) Resolve(ctx context.Context, requesterID, recipientID uint64) (Resolution, error) {
	if requesterID == recipientID {
		return Resolution{}, fmt.Errorf("resolve %d with itself: %w", requesterID, svcErr.ErrInvalidTransition)
	}
	if err := p.requireMutual(ctx, requesterID, recipientID); err != nil {
		return Resolution{}, err
	}
	return p.gate.Resolve(ctx, requesterID, recipientID)
}

// Materialize creates the match for {a, b} only when the pair has
// consented: mutual interest and either no guardian or an approved
// request. An existing match is returned as a duplicate without
// re-checking, since it was consented when it was written.
//
// Example:
//
//	p.Materialize(ctx, 1, 2) // ErrNotConsented while 2's guardian has not approved
func (p *Pipeline) Materialize(ctx context.Context, a, b uint64) (MaterializeResult, error) {
	if a == b {
		return MaterializeResult{}, fmt.Errorf("materialize %d with itself: %w", a, svcErr.ErrInvalidTransition)
	}

	existing, err := p.matches.GetByPair(ctx, a, b)
	switch {
	case err == nil:
		return MaterializeResult{MatchID: existing.ID, UserA: existing.UserA, UserB: existing.UserB, Duplicate: true}, nil
	case !errors.Is(err, svcErr.ErrNotFound):
		return MaterializeResult{}, fmt.Errorf("load match: %w", err)
	}

	res, err := p.Resolve(ctx, a, b)
	if err != nil {
		return MaterializeResult{}, err
	}
	switch res.Kind {
	case ResolutionDirectMatch, ResolutionApproved:
		return p.materializer.Materialize(ctx, a, b)
	default:
		return MaterializeResult{}, fmt.Errorf("materialize %d-%d: introduction %d is %s: %w",
			a, b, res.RequestID, res.Kind, svcErr.ErrNotConsented)
	}
}

func (p *Pipeline) requireMutual(ctx context.Context, a, b uint64) error {
	for _, pair := range [][2]uint64{{a, b}, {b, a}} {
		ok, err := p.detector.CheckMutual(ctx, pair[0], pair[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no positive signal %d->%d: %w", pair[1], pair[0], svcErr.ErrNotConsented)
		}
	}
	return nil
}
