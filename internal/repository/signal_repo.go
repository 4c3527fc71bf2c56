package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-consent/internal/db"
)

var positiveKinds = []string{db.KindLike, db.KindSuperInterest}

// SignalRepository is the storage of the append-only interest ledger.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository bound to the given DB connection.
func NewSignalRepository(database *gorm.DB) *SignalRepository {
	return &SignalRepository{db: database}
}

// CreateSignal appends s and fills in its id. No dedup: a user may pass and
// later like the same person, each is its own row.
func (r *SignalRepository) CreateSignal(ctx context.Context, s *db.Signal) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// CountPositiveSince counts likes and super interests authored by userID at
// or after since.
//
// Example:
//
//	repo.CountPositiveSince(ctx, 42, midnightUTC) // -> 3
func (r *SignalRepository) CountPositiveSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Signal{}).
		Where("from_user_id = ? AND kind IN ? AND created_at >= ?", userID, positiveKinds, since).
		Count(&count).Error
	return count, err
}

// HasPositive checks whether from has ever sent a positive signal to to.
//
// Example:
//
//	repo.HasPositive(ctx, 1, 2) // -> true if user 1 liked user 2
func (r *SignalRepository) HasPositive(ctx context.Context, from, to uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Signal{}).
		Where("from_user_id = ? AND to_user_id = ? AND kind IN ?", from, to, positiveKinds).
		Count(&count).Error
	return count > 0, err
}
