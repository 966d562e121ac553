// Package preference answers whether a delivery channel is enabled for a
// user and manages the per-category preference rows behind that answer.
package preference

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
)

// Channel identifies a delivery medium for the gate check.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Repository is the preference persistence surface.
type Repository interface {
	GetPreference(ctx context.Context, userID uuid.UUID, category string) (*db.UserNotificationPreference, error)
	ListPreferences(ctx context.Context, userID uuid.UUID) ([]*db.UserNotificationPreference, error)
	UpsertPreference(ctx context.Context, pref *db.UserNotificationPreference) error
}

// Service gates sends on user preferences and exposes the preference
// management surface.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a preference service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// IsEnabled reports whether the channel is enabled for the user under the
// given category. The check is advisory and fails open: a nil user id
// (system sends) is always enabled, and a lookup error is treated as
// enabled since suppressing a security-relevant notification is worse
// than over-delivering. A missing row yields the category defaults.
func (s *Service) IsEnabled(ctx context.Context, userID *uuid.UUID, category string, channel Channel) bool {
	if userID == nil {
		return true
	}

	pref, err := s.repo.GetPreference(ctx, *userID, category)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("preference lookup failed, treating channel as enabled",
				zap.String("user_id", userID.String()),
				zap.String("category", category),
				zap.Error(err),
			)
			return true
		}
		pref = db.DefaultPreference(*userID, category)
	}

	switch channel {
	case ChannelEmail:
		return pref.EmailEnabled
	case ChannelSMS:
		return pref.SmsEnabled
	case ChannelPush:
		return pref.PushEnabled
	case ChannelInApp:
		return pref.InAppEnabled
	default:
		return true
	}
}

// GetUserPreferences returns all preference rows for a user, lazily
// creating the category defaults on first access.
func (s *Service) GetUserPreferences(ctx context.Context, userID uuid.UUID) ([]*db.UserNotificationPreference, error) {
	prefs, err := s.repo.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		return prefs, nil
	}

	s.logger.Info("creating default notification preferences",
		zap.String("user_id", userID.String()),
	)

	for _, category := range db.Categories {
		pref := db.DefaultPreference(userID, category)
		if err := s.repo.UpsertPreference(ctx, pref); err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}

	return prefs, nil
}

// Update describes a partial preference change; nil fields keep the
// current value.
type Update struct {
	Category     string  `json:"notification_category"`
	EmailEnabled *bool   `json:"email_enabled,omitempty"`
	SmsEnabled   *bool   `json:"sms_enabled,omitempty"`
	PushEnabled  *bool   `json:"push_enabled,omitempty"`
	InAppEnabled *bool   `json:"in_app_enabled,omitempty"`
	Frequency    *string `json:"frequency,omitempty"`
}

// UpdatePreference applies a partial update to the (user, category) row,
// creating it from the category defaults if it does not exist yet.
func (s *Service) UpdatePreference(ctx context.Context, userID uuid.UUID, update Update) (*db.UserNotificationPreference, error) {
	pref, err := s.repo.GetPreference(ctx, userID, update.Category)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		pref = db.DefaultPreference(userID, update.Category)
	}

	if update.EmailEnabled != nil {
		pref.EmailEnabled = *update.EmailEnabled
	}
	if update.SmsEnabled != nil {
		pref.SmsEnabled = *update.SmsEnabled
	}
	if update.PushEnabled != nil {
		pref.PushEnabled = *update.PushEnabled
	}
	if update.InAppEnabled != nil {
		pref.InAppEnabled = *update.InAppEnabled
	}
	if update.Frequency != nil {
		pref.Frequency = *update.Frequency
	}

	if err := s.repo.UpsertPreference(ctx, pref); err != nil {
		return nil, err
	}

	return pref, nil
}
