package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
)

// IntroductionRepository stores guardian introduction requests.
type IntroductionRepository struct {
	db *gorm.DB
}

// NewIntroductionRepository creates a new repository bound to the given DB connection.
func NewIntroductionRepository(database *gorm.DB) *IntroductionRepository {
	return &IntroductionRepository{db: database}
}

// IntroductionFilter narrows List. Zero fields are ignored.
type IntroductionFilter struct {
	GuardianID uint64
	UserID     uint64
	Status     string
}

// CreateIfAbsent inserts req unless (pair_low, pair_high) already has a row.
//
// Behavior:
//   - The unique key ux_intro_pair turns a concurrent second insert into a
//     no-op instead of an error.
//   - On conflict the existing row is loaded and returned with created=false.
func (r *IntroductionRepository) CreateIfAbsent(ctx context.Context, req *db.IntroductionRequest) (*db.IntroductionRequest, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(req)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return req, true, nil
	}

	existing, err := r.GetByPair(ctx, req.PairLow, req.PairHigh)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get loads a request by id.
func (r *IntroductionRepository) Get(ctx context.Context, id uint64) (*db.IntroductionRequest, error) {
	var req db.IntroductionRequest
	err := r.db.WithContext(ctx).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("introduction %d: %w", id, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByPair loads the request for an unordered pair.
func (r *IntroductionRepository) GetByPair(ctx context.Context, a, b uint64) (*db.IntroductionRequest, error) {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	var req db.IntroductionRequest
	err := r.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", lo, hi).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("introduction for %d-%d: %w", lo, hi, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Transition moves a pending request to status in one conditional update.
// It returns false when the request was missing or no longer pending, so
// two racing guardians cannot both decide. events are written in the same
// transaction, and only when the request moved.
func (r *IntroductionRepository) Transition(ctx context.Context, id uint64, status string, notes *string, at time.Time, events []db.PendingNotificationEvent) (bool, error) {
	if status != db.IntroApproved && status != db.IntroRejected {
		return false, fmt.Errorf("transition to %q: %w", status, svcErr.ErrInvalidTransition)
	}

	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.IntroductionRequest{}).
			Where("id = ? AND status = ?", id, db.IntroPending).
			Updates(map[string]any{
				"status":            status,
				"guardian_approved": status == db.IntroApproved,
				"guardian_notes":    notes,
				"decided_at":        at,
				"updated_at":        at,
			})
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected == 1
		if !moved || len(events) == 0 {
			return nil
		}
		return tx.Create(&events).Error
	})
	return moved, err
}

// List returns requests matching f, newest first.
func (r *IntroductionRepository) List(ctx context.Context, f IntroductionFilter, limit int) ([]db.IntroductionRequest, error) {
	q := r.db.WithContext(ctx).Model(&db.IntroductionRequest{})
	if f.GuardianID != 0 {
		q = q.Where("guardian_id = ?", f.GuardianID)
	}
	if f.UserID != 0 {
		q = q.Where("(requester_id = ? OR recipient_id = ?)", f.UserID, f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var reqs []db.IntroductionRequest
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&reqs).Error
	return reqs, err
}
