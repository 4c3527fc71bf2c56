package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-consent/internal/consent"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/notify"
)

// fallbackDisplayName is used for users without a username, so digests
// still group under a stable source.
const fallbackDisplayName = "Someone"

// ProfileRepository reads the profile facts owned by other services: tier,
// guardian policy, display name, contact and notification preferences.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

func (r *ProfileRepository) profile(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetSubscriptionTier returns the user's tier, lowercased. Users without a
// profile are on the free tier.
func (r *ProfileRepository) GetSubscriptionTier(ctx context.Context, userID uint64) (string, error) {
	p, err := r.profile(ctx, userID)
	if err != nil {
		return "", err
	}
	if p == nil || strings.TrimSpace(p.Tier) == "" {
		return consent.TierFree, nil
	}
	return strings.ToLower(strings.TrimSpace(p.Tier)), nil
}

// GetGuardianPolicy returns the user's guardian setting. No profile means no
// guardian.
func (r *ProfileRepository) GetGuardianPolicy(ctx context.Context, userID uint64) (consent.GuardianPolicy, error) {
	policy := consent.GuardianPolicy{WardUserID: userID}
	p, err := r.profile(ctx, userID)
	if err != nil || p == nil {
		return policy, err
	}
	policy.Required = p.RequireGuardianApproval
	policy.GuardianUserID = p.GuardianUserID
	policy.Contact = p.GuardianContact
	return policy, nil
}

// DisplayName returns the username shown in notifications.
func (r *ProfileRepository) DisplayName(ctx context.Context, userID uint64) (string, error) {
	var u db.User
	err := r.db.WithContext(ctx).Select("id", "username").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallbackDisplayName, nil
	}
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name, nil
	}
	return fallbackDisplayName, nil
}

// Recipients loads contacts and preferences for userIDs. Unknown users are
// returned with an empty contact so the batcher skips them.
func (r *ProfileRepository) Recipients(ctx context.Context, userIDs []uint64) (map[uint64]notify.Recipient, error) {
	out := make(map[uint64]notify.Recipient, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var users []db.User
	if err := r.db.WithContext(ctx).
		Select("id", "email", "active").
		Where("id IN ?", userIDs).
		Find(&users).Error; err != nil {
		return nil, err
	}
	var prefs []db.NotificationPreference
	if err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&prefs).Error; err != nil {
		return nil, err
	}

	for _, id := range userIDs {
		out[id] = notify.Recipient{}
	}
	for _, u := range users {
		rec := out[u.ID]
		if u.Active {
			rec.Contact = u.Email
		}
		out[u.ID] = rec
	}
	for i := range prefs {
		rec := out[prefs[i].UserID]
		rec.Preference = &prefs[i]
		out[prefs[i].UserID] = rec
	}
	return out, nil
}

// UpsertPreference inserts or replaces a user's notification preference.
func (r *ProfileRepository) UpsertPreference(ctx context.Context, p *db.NotificationPreference) error {
	if p.Frequency == "" {
		p.Frequency = notify.FrequencyInstant
	}
	p.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "match_opt_in", "message_opt_in", "introduction_opt_in", "frequency", "updated_at"}),
		}).
		Create(p).Error
}

// UpsertProfile inserts or replaces a user's tier and guardian policy.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, p *db.Profile) error {
	p.Tier = strings.ToLower(strings.TrimSpace(p.Tier))
	if p.Tier == "" {
		p.Tier = consent.TierFree
	}
	p.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "require_guardian_approval", "guardian_user_id", "guardian_contact", "updated_at"}),
		}).
		Create(p).Error
}
