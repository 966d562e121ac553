package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repository handles database operations for logs, templates and preferences
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateLog inserts a new notification log row
func (r *Repository) CreateLog(ctx context.Context, log *NotificationLog) error {
	query := `
		INSERT INTO notification_logs (
			log_id, notification_type, recipient, template_name, subject, content,
			status, provider, provider_message_id, error_message, sent_at,
			retry_count, max_retries, user_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		log.LogID,
		log.NotificationType,
		log.Recipient,
		log.TemplateName,
		log.Subject,
		log.Content,
		log.Status,
		log.Provider,
		log.ProviderMessageID,
		log.ErrorMessage,
		log.SentAt,
		log.RetryCount,
		log.MaxRetries,
		log.UserID,
	).Scan(&log.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create notification log",
			zap.Error(err),
			zap.String("log_id", log.LogID.String()),
		)
		return fmt.Errorf("insert notification log: %w", err)
	}

	r.logger.Info("notification log created",
		zap.String("log_id", log.LogID.String()),
		zap.String("type", log.NotificationType),
		zap.String("status", log.Status),
	)

	return nil
}

// GetLog retrieves a notification log by ID
func (r *Repository) GetLog(ctx context.Context, id uuid.UUID) (*NotificationLog, error) {
	query := `
		SELECT
			log_id, notification_type, recipient, template_name, subject, content,
			status, provider, provider_message_id, error_message, sent_at,
			delivered_at, retry_count, max_retries, user_id, created_at
		FROM notification_logs
		WHERE log_id = $1
	`

	var log NotificationLog
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&log.LogID,
		&log.NotificationType,
		&log.Recipient,
		&log.TemplateName,
		&log.Subject,
		&log.Content,
		&log.Status,
		&log.Provider,
		&log.ProviderMessageID,
		&log.ErrorMessage,
		&log.SentAt,
		&log.DeliveredAt,
		&log.RetryCount,
		&log.MaxRetries,
		&log.UserID,
		&log.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("notification log %s: %w", id, ErrNotFound)
	}

	if err != nil {
		r.logger.Error("failed to get notification log",
			zap.Error(err),
			zap.String("log_id", id.String()),
		)
		return nil, fmt.Errorf("query notification log: %w", err)
	}

	return &log, nil
}

// UpdateLogOutcome records the outcome of a delivery or retry attempt.
// This is the single mutation path for existing log rows.
func (r *Repository) UpdateLogOutcome(
	ctx context.Context,
	id uuid.UUID,
	status string,
	retryCount int,
	errorMsg *string,
	sentAt *time.Time,
) error {
	query := `
		UPDATE notification_logs
		SET status = $1, retry_count = $2, error_message = $3, sent_at = COALESCE($4, sent_at)
		WHERE log_id = $5
	`

	result, err := r.db.Pool().Exec(ctx, query, status, retryCount, errorMsg, sentAt, id)
	if err != nil {
		r.logger.Error("failed to update notification log",
			zap.Error(err),
			zap.String("log_id", id.String()),
		)
		return fmt.Errorf("update notification log: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification log %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListLogsByUser retrieves notification logs for a user with pagination
func (r *Repository) ListLogsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*NotificationLog, error) {
	query := `
		SELECT
			log_id, notification_type, recipient, template_name, subject, content,
			status, provider, provider_message_id, error_message, sent_at,
			delivered_at, retry_count, max_retries, user_id, created_at
		FROM notification_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notification logs: %w", err)
	}
	defer rows.Close()

	var logs []*NotificationLog
	for rows.Next() {
		var log NotificationLog
		err := rows.Scan(
			&log.LogID,
			&log.NotificationType,
			&log.Recipient,
			&log.TemplateName,
			&log.Subject,
			&log.Content,
			&log.Status,
			&log.Provider,
			&log.ProviderMessageID,
			&log.ErrorMessage,
			&log.SentAt,
			&log.DeliveredAt,
			&log.RetryCount,
			&log.MaxRetries,
			&log.UserID,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}

// GetTemplate retrieves the active template for (name, type, language)
func (r *Repository) GetTemplate(ctx context.Context, name, templateType, language string) (*NotificationTemplate, error) {
	query := `
		SELECT
			template_id, template_name, template_type, subject, body_html,
			body_text, language, variables, is_active, is_system,
			created_at, updated_at
		FROM notification_templates
		WHERE template_name = $1 AND template_type = $2 AND language = $3 AND is_active = TRUE
	`

	var tmpl NotificationTemplate
	err := r.db.Pool().QueryRow(ctx, query, name, templateType, language).Scan(
		&tmpl.TemplateID,
		&tmpl.TemplateName,
		&tmpl.TemplateType,
		&tmpl.Subject,
		&tmpl.BodyHTML,
		&tmpl.BodyText,
		&tmpl.Language,
		&tmpl.Variables,
		&tmpl.IsActive,
		&tmpl.IsSystem,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s/%s/%s: %w", name, templateType, language, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	return &tmpl, nil
}

// GetPreference retrieves the preference row for (user, category)
func (r *Repository) GetPreference(ctx context.Context, userID uuid.UUID, category string) (*UserNotificationPreference, error) {
	query := `
		SELECT
			preference_id, user_id, notification_category, email_enabled,
			sms_enabled, push_enabled, in_app_enabled, frequency,
			created_at, updated_at
		FROM user_notification_preferences
		WHERE user_id = $1 AND notification_category = $2
	`

	var pref UserNotificationPreference
	err := r.db.Pool().QueryRow(ctx, query, userID, category).Scan(
		&pref.PreferenceID,
		&pref.UserID,
		&pref.Category,
		&pref.EmailEnabled,
		&pref.SmsEnabled,
		&pref.PushEnabled,
		&pref.InAppEnabled,
		&pref.Frequency,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("preference %s/%s: %w", userID, category, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("query preference: %w", err)
	}

	return &pref, nil
}

// ListPreferences retrieves all preference rows for a user
func (r *Repository) ListPreferences(ctx context.Context, userID uuid.UUID) ([]*UserNotificationPreference, error) {
	query := `
		SELECT
			preference_id, user_id, notification_category, email_enabled,
			sms_enabled, push_enabled, in_app_enabled, frequency,
			created_at, updated_at
		FROM user_notification_preferences
		WHERE user_id = $1
		ORDER BY notification_category
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*UserNotificationPreference
	for rows.Next() {
		var pref UserNotificationPreference
		err := rows.Scan(
			&pref.PreferenceID,
			&pref.UserID,
			&pref.Category,
			&pref.EmailEnabled,
			&pref.SmsEnabled,
			&pref.PushEnabled,
			&pref.InAppEnabled,
			&pref.Frequency,
			&pref.CreatedAt,
			&pref.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, &pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return prefs, nil
}

// UpsertPreference inserts or updates a preference row for (user, category)
func (r *Repository) UpsertPreference(ctx context.Context, pref *UserNotificationPreference) error {
	query := `
		INSERT INTO user_notification_preferences (
			preference_id, user_id, notification_category, email_enabled,
			sms_enabled, push_enabled, in_app_enabled, frequency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, notification_category) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			frequency = EXCLUDED.frequency,
			updated_at = NOW()
		RETURNING preference_id, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		pref.PreferenceID,
		pref.UserID,
		pref.Category,
		pref.EmailEnabled,
		pref.SmsEnabled,
		pref.PushEnabled,
		pref.InAppEnabled,
		pref.Frequency,
	).Scan(&pref.PreferenceID, &pref.CreatedAt, &pref.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}

	return nil
}

// GetStats aggregates delivery counts over [start, end)
func (r *Repository) GetStats(ctx context.Context, start, end time.Time) (*DeliveryStats, error) {
	stats := &DeliveryStats{PeriodStart: start, PeriodEnd: end}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'SENT'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE notification_type = 'EMAIL' AND status = 'SENT'),
			COUNT(*) FILTER (WHERE notification_type = 'SMS' AND status = 'SENT')
		FROM notification_logs
		WHERE created_at >= $1 AND created_at < $2
	`

	err := r.db.Pool().QueryRow(ctx, query, start, end).Scan(
		&stats.TotalSent,
		&stats.TotalFailed,
		&stats.EmailsSent,
		&stats.SmsSent,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	if total := stats.TotalSent + stats.TotalFailed; total > 0 {
		stats.SuccessRate = float64(stats.TotalSent) / float64(total) * 100
	}

	templateQuery := `
		SELECT template_name
		FROM notification_logs
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY template_name
		ORDER BY COUNT(*) DESC
		LIMIT 1
	`

	err = r.db.Pool().QueryRow(ctx, templateQuery, start, end).Scan(&stats.MostUsedTemplate)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("query most used template: %w", err)
	}

	return stats, nil
}
