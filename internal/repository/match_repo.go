package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/utils/pagination"
)

// MatchRepository stores canonical matches.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent inserts m, plus events when the row is new, in one
// transaction.
//
// Behavior:
//   - m must already be canonical (UserA < UserB).
//   - The unique key ux_match_pair makes a duplicate insert a no-op; the
//     existing match is loaded and returned with created=false and no events
//     are written.
//
// Example:
//
//	repo.CreateIfAbsent(ctx, &db.Match{UserA: 1, UserB: 2}, events)
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, m *db.Match, events []db.PendingNotificationEvent) (*db.Match, bool, error) {
	if m.UserA >= m.UserB {
		return nil, false, fmt.Errorf("match %d-%d is not canonical: %w", m.UserA, m.UserB, svcErr.ErrInvalidTransition)
	}

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if len(events) == 0 {
			return nil
		}
		return tx.Create(&events).Error
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		return m, true, nil
	}

	existing, err := r.GetByPair(ctx, m.UserA, m.UserB)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByPair loads the match for an unordered pair.
func (r *MatchRepository) GetByPair(ctx context.Context, a, b uint64) (*db.Match, error) {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", lo, hi).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match %d-%d: %w", lo, hi, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns the user's matches, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListForUser(ctx, 42, nil, 20) // first 20 matches of user 42
func (r *MatchRepository) ListForUser(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("(user_a = ? OR user_b = ?)", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.Empty() {
		ts := cursor.CreatedAt()
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var matches []db.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
