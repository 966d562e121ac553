package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationLog is the record of a single delivery attempt.
// The only post-creation mutation happens on the retry path, which bumps
// retry_count and moves the row back to PENDING before a resend.
type NotificationLog struct {
	LogID             uuid.UUID  `json:"log_id"`
	NotificationType  string     `json:"notification_type"`
	Recipient         string     `json:"recipient"`
	TemplateName      string     `json:"template_name"`
	Subject           *string    `json:"subject,omitempty"`
	Content           *string    `json:"content,omitempty"`
	Status            string     `json:"status"`
	Provider          *string    `json:"provider,omitempty"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	UserID            *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NotificationTemplate is versioned content keyed by (name, type, language).
// Read-only to the dispatch pipeline; managed by an external surface.
type NotificationTemplate struct {
	TemplateID   uuid.UUID       `json:"template_id"`
	TemplateName string          `json:"template_name"`
	TemplateType string          `json:"template_type"`
	Subject      *string         `json:"subject,omitempty"`
	BodyHTML     *string         `json:"body_html,omitempty"`
	BodyText     *string         `json:"body_text,omitempty"`
	Language     string          `json:"language"`
	Variables    json.RawMessage `json:"variables,omitempty"`
	IsActive     bool            `json:"is_active"`
	IsSystem     bool            `json:"is_system"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// UserNotificationPreference holds the per (user, category) channel toggles.
// Exactly one row per pair; rows are lazily created with category defaults.
type UserNotificationPreference struct {
	PreferenceID uuid.UUID `json:"preference_id"`
	UserID       uuid.UUID `json:"user_id"`
	Category     string    `json:"notification_category"`
	EmailEnabled bool      `json:"email_enabled"`
	SmsEnabled   bool      `json:"sms_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	InAppEnabled bool      `json:"in_app_enabled"`
	Frequency    string    `json:"frequency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Status constants
const (
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusFailed    = "FAILED"
	StatusDelivered = "DELIVERED"
)

// Notification type constants
const (
	TypeEmail = "EMAIL"
	TypeSMS   = "SMS"
	TypePush  = "PUSH"
	TypeInApp = "IN_APP"
)

// Category constants
const (
	CategorySecurity  = "SECURITY"
	CategoryAccount   = "ACCOUNT"
	CategorySystem    = "SYSTEM"
	CategoryMarketing = "MARKETING"
)

// Frequency constants
const (
	FrequencyImmediate = "IMMEDIATE"
	FrequencyDaily     = "DAILY"
	FrequencyWeekly    = "WEEKLY"
	FrequencyDisabled  = "DISABLED"
)

// Categories lists every known notification category.
var Categories = []string{CategorySecurity, CategoryAccount, CategorySystem, CategoryMarketing}

// DeliveryStats aggregates log counts over a reporting window.
type DeliveryStats struct {
	TotalSent        int64     `json:"total_sent"`
	TotalFailed      int64     `json:"total_failed"`
	EmailsSent       int64     `json:"emails_sent"`
	SmsSent          int64     `json:"sms_sent"`
	SuccessRate      float64   `json:"success_rate"`
	MostUsedTemplate string    `json:"most_used_template"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
}

// DefaultPreference returns the lazily-created preference row for a
// category. SECURITY defaults all channels on; MARKETING defaults all off;
// ACCOUNT and SYSTEM enable everything except SMS to avoid unsolicited
// carrier charges.
func DefaultPreference(userID uuid.UUID, category string) *UserNotificationPreference {
	pref := &UserNotificationPreference{
		PreferenceID: uuid.New(),
		UserID:       userID,
		Category:     category,
		EmailEnabled: true,
		SmsEnabled:   false,
		PushEnabled:  true,
		InAppEnabled: true,
		Frequency:    FrequencyImmediate,
	}

	switch category {
	case CategorySecurity:
		pref.SmsEnabled = true
	case CategoryMarketing:
		pref.EmailEnabled = false
		pref.PushEnabled = false
		pref.InAppEnabled = false
	}

	return pref
}
