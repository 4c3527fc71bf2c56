package consent

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oggyb/muzz-consent/internal/app"
	domain "github.com/oggyb/muzz-consent/internal/consent"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/notify"
	"github.com/oggyb/muzz-consent/internal/repository"
	"github.com/oggyb/muzz-consent/internal/utils/pagination"
)

const (
	defaultPageSize = 20
)

// Service implements the Consent gRPC API on top of the consent pipeline,
// the repositories and the notification outbox.
type Service struct {
	appCtx   *app.AppContext
	validate *validator.Validate

	profiles *repository.ProfileRepository
	intros   *repository.IntroductionRepository
	matches  *repository.MatchRepository

	ledger   *domain.Ledger
	quota    *domain.QuotaEnforcer
	detector *domain.Detector
	gate     *domain.Gate
	pipeline *domain.Pipeline
	outbox   *notify.Outbox
}

// NewConsentService wires the service from AppContext.
// Dependencies include:
//   - DB connection (signals, introductions, matches, profiles, events)
//   - RedisCache for the daily quota counter, when present
//   - Config.Quota.Ceilings for tier limits
func NewConsentService(appCtx *app.AppContext) *Service {
	log := appCtx.Logger
	clk := appCtx.Clock

	profiles := repository.NewProfileRepository(appCtx.DB)
	signals := repository.NewSignalRepository(appCtx.DB)
	intros := repository.NewIntroductionRepository(appCtx.DB)
	matches := repository.NewMatchRepository(appCtx.DB)
	events := repository.NewEventRepository(appCtx.DB)

	var counter domain.DailyCounter
	if appCtx.RedisCache != nil {
		counter = appCtx.RedisCache
	}

	ledger := domain.NewLedger(signals, counter, clk, log)
	quota := domain.NewQuotaEnforcer(signals, counter, appCtx.Config.Quota.Ceilings, clk, log)
	detector := domain.NewDetector(signals)
	materializer := domain.NewMaterializer(matches, profiles, clk, log)
	gate := domain.NewGate(profiles, intros, materializer, clk, log)

	return &Service{
		appCtx:   appCtx,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		profiles: profiles,
		intros:   intros,
		matches:  matches,
		ledger:   ledger,
		quota:    quota,
		detector: detector,
		gate:     gate,
		pipeline: domain.NewPipeline(profiles, matches, ledger, quota, detector, gate, materializer, log),
		outbox:   notify.NewOutbox(events, clk),
	}
}

// check validates req and converts validator output to InvalidArgument.
func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
		return svcErr.InvalidArgument(strings.Join(fields, "; "))
	}
	return svcErr.InvalidArgument(err.Error())
}

// ExpressInterest is the swipe endpoint.
//
// Behavior:
//   - Rejects over-quota positive signals with ResourceExhausted.
//   - Records the signal, then on mutual interest either materializes the
//     match or opens a guardian introduction request.
//
// Example:
//
//	svc.ExpressInterest(ctx, &ExpressInterestRequest{FromUserID: 1, ToUserID: 2, Kind: "like"})
func (s *Service) ExpressInterest(ctx context.Context, req *ExpressInterestRequest) (*ExpressInterestResponse, error) {
	s.appCtx.Logger.Debug("ExpressInterest called", "from", req.FromUserID, "to", req.ToUserID, "kind", req.Kind)

	if err := s.check(req); err != nil {
		return nil, err
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out, err := s.pipeline.ExpressInterest(ctx, req.FromUserID, req.ToUserID, kind)
	if err != nil {
		s.appCtx.Logger.Debug("ExpressInterest failed", "from", req.FromUserID, "to", req.ToUserID, "err", err)
		return nil, svcErr.Map(err)
	}

	return &ExpressInterestResponse{
		SignalID:  out.SignalID,
		Mutual:    out.Mutual,
		Result:    string(out.Result),
		MatchID:   out.MatchID,
		RequestID: out.RequestID,
		Duplicate: out.Duplicate,
	}, nil
}

// RecordSignal appends a signal without a quota check or matching. A
// positive signal still counts toward today's quota.
func (s *Service) RecordSignal(ctx context.Context, req *RecordSignalRequest) (*RecordSignalResponse, error) {
	s.appCtx.Logger.Debug("RecordSignal called", "from", req.FromUserID, "to", req.ToUserID, "kind", req.Kind)

	if err := s.check(req); err != nil {
		return nil, err
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	id, err := s.ledger.RecordSignal(ctx, req.FromUserID, req.ToUserID, kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &RecordSignalResponse{SignalID: id}, nil
}

// Authorize answers whether the user may send a signal of kind right now.
// An exhausted quota is a ResourceExhausted error, not Allowed=false.
func (s *Service) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	tier, err := s.profiles.GetSubscriptionTier(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.quota.Authorize(ctx, req.UserID, tier, kind); err != nil {
		return nil, svcErr.Map(err)
	}
	return &AuthorizeResponse{Tier: tier, Allowed: true}, nil
}

func (s *Service) CheckMutual(ctx context.Context, req *CheckMutualRequest) (*CheckMutualResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	mutual, err := s.detector.CheckMutual(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &CheckMutualResponse{Mutual: mutual}, nil
}

// Resolve runs the guardian gate for a mutual pair. It does not
// materialize; a direct_match or approved verdict is followed by
// Materialize. A pair without mutual interest is FailedPrecondition.
func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	s.appCtx.Logger.Debug("Resolve called", "requester", req.RequesterID, "recipient", req.RecipientID)

	if err := s.check(req); err != nil {
		return nil, err
	}
	res, err := s.pipeline.Resolve(ctx, req.RequesterID, req.RecipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ResolveResponse{
		Kind:      string(res.Kind),
		RequestID: res.RequestID,
		WardID:    res.WardID,
		Duplicate: res.Duplicate,
	}, nil
}

// Decide records a guardian's verdict.
//
// Behavior:
//   - Unknown request -> NotFound.
//   - Request no longer pending -> FailedPrecondition.
//   - Approval materializes the match and returns its id.
//
// Example:
//
//	svc.Decide(ctx, &DecideRequest{RequestID: 7, Approved: true})
func (s *Service) Decide(ctx context.Context, req *DecideRequest) (*DecideResponse, error) {
	s.appCtx.Logger.Debug("Decide called", "request_id", req.RequestID, "approved", req.Approved)

	if err := s.check(req); err != nil {
		return nil, err
	}
	dec, err := s.gate.Decide(ctx, req.RequestID, req.Approved, req.Notes)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &DecideResponse{Introduction: toIntroduction(dec.Request)}
	if dec.Match != nil {
		resp.MatchID = dec.Match.MatchID
	}
	return resp, nil
}

// Materialize writes the match for a pair that has consented. Missing
// mutual interest or a request not approved is FailedPrecondition.
func (s *Service) Materialize(ctx context.Context, req *MaterializeRequest) (*MaterializeResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	res, err := s.pipeline.Materialize(ctx, req.UserA, req.UserB)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &MaterializeResponse{
		MatchID:   res.MatchID,
		UserA:     res.UserA,
		UserB:     res.UserB,
		Duplicate: res.Duplicate,
	}, nil
}

// GetQuota reports today's positive signal usage.
func (s *Service) GetQuota(ctx context.Context, req *GetQuotaRequest) (*GetQuotaResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tier, err := s.profiles.GetSubscriptionTier(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	usage, err := s.quota.Usage(ctx, req.UserID, tier)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &GetQuotaResponse{
		Tier:      tier,
		Used:      usage.Used,
		Limit:     usage.Limit,
		Unlimited: usage.Unlimited,
		Remaining: usage.Remaining(),
	}, nil
}

// ListMatches returns the user's matches, newest first, with cursor
// pagination.
func (s *Service) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	s.appCtx.Logger.Debug("ListMatches called", "user", req.UserID, "has_token", req.PaginationToken != nil)

	if err := s.check(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	matches, next, err := s.matches.ListForUser(ctx, req.UserID, req.PaginationToken, limit)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidToken) {
			return nil, svcErr.InvalidArgument(err.Error())
		}
		return nil, svcErr.Map(err)
	}

	resp := &ListMatchesResponse{Matches: make([]MatchItem, 0, len(matches)), NextPaginationToken: next}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, MatchItem{
			MatchID:       m.ID,
			OtherUserID:   m.Other(req.UserID),
			UnixTimestamp: m.CreatedAt.UnixMilli(),
		})
	}
	return resp, nil
}

// ListIntroductions lists requests for a guardian or a user.
func (s *Service) ListIntroductions(ctx context.Context, req *ListIntroductionsRequest) (*ListIntroductionsResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	reqs, err := s.intros.List(ctx, repository.IntroductionFilter{
		GuardianID: req.GuardianID,
		UserID:     req.UserID,
		Status:     req.Status,
	}, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &ListIntroductionsResponse{Introductions: make([]Introduction, 0, len(reqs))}
	for i := range reqs {
		resp.Introductions = append(resp.Introductions, toIntroduction(&reqs[i]))
	}
	return resp, nil
}

// EnqueueNotification lets collaborators such as messaging hand events to
// the batcher.
func (s *Service) EnqueueNotification(ctx context.Context, req *EnqueueNotificationRequest) (*EnqueueNotificationResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := s.outbox.Enqueue(ctx, req.RecipientUserID, req.Type, req.SourceActorName, req.Preview, req.Extra)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &EnqueueNotificationResponse{EventID: id}, nil
}

func toIntroduction(r *db.IntroductionRequest) Introduction {
	out := Introduction{
		RequestID:        r.ID,
		RequesterID:      r.RequesterID,
		RecipientID:      r.RecipientID,
		Status:           r.Status,
		GuardianApproved: r.GuardianApproved,
		CreatedUnix:      r.CreatedAt.UnixMilli(),
	}
	if r.GuardianNotes != nil {
		out.GuardianNotes = *r.GuardianNotes
	}
	if r.DecidedAt != nil {
		out.DecidedUnix = r.DecidedAt.UnixMilli()
	}
	return out
}
