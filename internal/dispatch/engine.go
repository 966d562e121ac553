// Package dispatch orchestrates a notification attempt: preference gate,
// template resolution, provider call, and audit logging.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/metrics"
	"github.com/heraldapp/herald/internal/preference"
	"github.com/heraldapp/herald/internal/provider"
	"github.com/heraldapp/herald/internal/queue"
	"github.com/heraldapp/herald/internal/realtime"
	"github.com/heraldapp/herald/internal/template"
)

// LogRepository is the audit-log persistence surface the engine needs.
type LogRepository interface {
	CreateLog(ctx context.Context, log *db.NotificationLog) error
	UpdateLogOutcome(ctx context.Context, id uuid.UUID, status string, retryCount int, errorMsg *string, sentAt *time.Time) error
}

// Gate answers whether a channel is enabled for a user.
type Gate interface {
	IsEnabled(ctx context.Context, userID *uuid.UUID, category string, channel preference.Channel) bool
}

// Enqueuer is the durable queue surface for bulk sends.
type Enqueuer interface {
	Push(ctx context.Context, item string) error
}

// Result is the synchronous outcome returned to callers.
type Result struct {
	Success  bool       `json:"success"`
	Disabled bool       `json:"disabled,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Message  string     `json:"message,omitempty"`
	LogID    *uuid.UUID `json:"log_id,omitempty"`
}

// Config holds engine tunables.
type Config struct {
	MaxRetries      int
	DefaultLanguage string
}

// Engine coordinates a single notification through gate, resolution,
// provider call and audit log.
type Engine struct {
	providers *provider.Registry
	resolver  *template.Resolver
	gate      Gate
	repo      LogRepository
	queue     Enqueuer
	realtime  *realtime.Registry
	config    Config
	logger    *zap.Logger
}

// New creates a dispatch engine.
func New(
	providers *provider.Registry,
	resolver *template.Resolver,
	gate Gate,
	repo LogRepository,
	q Enqueuer,
	rt *realtime.Registry,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &Engine{
		providers: providers,
		resolver:  resolver,
		gate:      gate,
		repo:      repo,
		queue:     q,
		realtime:  rt,
		config:    cfg,
		logger:    logger,
	}
}

// EmailRequest is a direct email send.
type EmailRequest struct {
	To       string         `json:"to"`
	From     string         `json:"from,omitempty"`
	Subject  string         `json:"subject"`
	BodyHTML string         `json:"body_html,omitempty"`
	BodyText string         `json:"body_text,omitempty"`
	UserID   *uuid.UUID     `json:"user_id,omitempty"`
}

// SmsRequest is a direct SMS send.
type SmsRequest struct {
	PhoneNumber string     `json:"phone_number"`
	Message     string     `json:"message"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
}

// TemplatedEmailRequest is a template-driven email send.
type TemplatedEmailRequest struct {
	To           string         `json:"to"`
	From         string         `json:"from,omitempty"`
	TemplateName string         `json:"template_name"`
	Variables    map[string]any `json:"variables,omitempty"`
	Language     string         `json:"language,omitempty"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
}

// TemplatedSmsRequest is a template-driven SMS send.
type TemplatedSmsRequest struct {
	PhoneNumber  string         `json:"phone_number"`
	TemplateName string         `json:"template_name"`
	Variables    map[string]any `json:"variables,omitempty"`
	Language     string         `json:"language,omitempty"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
}

// BulkRequest fans a templated notification out to many recipients via
// the durable queue.
type BulkRequest struct {
	Recipients       []string  `json:"recipients"`
	TemplateName     string    `json:"template_name"`
	NotificationType string    `json:"notification_type"`
	RequestedBy      uuid.UUID `json:"requested_by"`
}

// SendEmail performs a direct email send: gate, provider call, audit log.
// A suppressed send returns a disabled result with no log row and no
// provider call.
func (e *Engine) SendEmail(ctx context.Context, req EmailRequest) Result {
	e.logger.Info("processing email notification", zap.String("to", req.To))

	if !e.gate.IsEnabled(ctx, req.UserID, db.CategoryAccount, preference.ChannelEmail) {
		metrics.RecordSuppressed(db.TypeEmail)
		return Result{Disabled: true, Message: "Email notifications disabled for user"}
	}

	res, _ := e.deliverEmail(ctx, provider.EmailMessage{
		To:       req.To,
		From:     req.From,
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
		BodyText: req.BodyText,
	}, "direct", req.UserID)
	return res
}

// SendSms performs a direct SMS send with the same shape as SendEmail.
// SMS defaults closed for most categories, so missing preference rows
// suppress the send.
func (e *Engine) SendSms(ctx context.Context, req SmsRequest) Result {
	return e.sendSmsGated(ctx, req, db.CategoryAccount)
}

func (e *Engine) sendSmsGated(ctx context.Context, req SmsRequest, category string) Result {
	e.logger.Info("processing sms notification", zap.String("phone_number", req.PhoneNumber))

	if !e.gate.IsEnabled(ctx, req.UserID, category, preference.ChannelSMS) {
		metrics.RecordSuppressed(db.TypeSMS)
		return Result{Disabled: true, Message: "SMS notifications disabled for user"}
	}

	res, _ := e.deliverSms(ctx, provider.SmsMessage{
		PhoneNumber: req.PhoneNumber,
		Message:     req.Message,
	}, "direct", req.UserID)
	return res
}

// SendTemplatedEmail resolves the template and delegates to the provider
// call and audit log path. Gating is the caller's concern on this path;
// template failures degrade to a fallback body instead of aborting.
func (e *Engine) SendTemplatedEmail(ctx context.Context, req TemplatedEmailRequest) Result {
	e.logger.Info("processing templated email",
		zap.String("template", req.TemplateName),
		zap.String("to", req.To),
	)

	language := req.Language
	if language == "" {
		language = e.config.DefaultLanguage
	}

	rendered := e.resolver.ResolveEmail(ctx, req.TemplateName, req.Variables, language)

	res, _ := e.deliverEmail(ctx, provider.EmailMessage{
		To:       req.To,
		From:     req.From,
		Subject:  rendered.Subject,
		BodyHTML: rendered.BodyHTML,
		BodyText: rendered.BodyText,
	}, req.TemplateName, req.UserID)
	return res
}

// SendTemplatedSms resolves the SMS template body and delegates to the
// provider call and audit log path.
func (e *Engine) SendTemplatedSms(ctx context.Context, req TemplatedSmsRequest) Result {
	language := req.Language
	if language == "" {
		language = e.config.DefaultLanguage
	}

	body := e.resolver.ResolveSms(ctx, req.TemplateName, req.Variables, language)

	res, _ := e.deliverSms(ctx, provider.SmsMessage{
		PhoneNumber: req.PhoneNumber,
		Message:     body,
	}, req.TemplateName, req.UserID)
	return res
}

// SendBulk pushes one queue item per recipient onto the durable queue.
// Admission is unbounded; the worker's time-boxed drain is the only
// throttle.
func (e *Engine) SendBulk(ctx context.Context, req BulkRequest) Result {
	e.logger.Info("queuing bulk notification",
		zap.Int("recipients", len(req.Recipients)),
		zap.String("template", req.TemplateName),
	)

	for _, recipient := range req.Recipients {
		item := queue.Item{
			Recipient:        recipient,
			TemplateName:     req.TemplateName,
			NotificationType: req.NotificationType,
			RequestedBy:      req.RequestedBy,
		}
		if err := e.queue.Push(ctx, item.Encode()); err != nil {
			return Result{Message: fmt.Sprintf("failed to queue bulk notification: %v", err)}
		}
		metrics.RecordEnqueued(req.NotificationType)
	}

	return Result{Success: true, Message: "Bulk notification queued successfully"}
}

// SendRealTime pushes a message to a connected user. No live connection
// is not an error; the result reports delivered=false via Success.
func (e *Engine) SendRealTime(userID uuid.UUID, msgType, message string) Result {
	delivered := e.realtime.Push(userID, msgType, message)
	metrics.RecordRealtimePush(delivered)
	if !delivered {
		return Result{Provider: "WEBSOCKET", Message: "No active realtime connection"}
	}
	return Result{Success: true, Provider: "WEBSOCKET", Message: "Real-time notification sent"}
}

// SendWelcomeEmail sends the standard welcome template to a new user.
func (e *Engine) SendWelcomeEmail(ctx context.Context, userID uuid.UUID, email, name string) Result {
	return e.SendTemplatedEmail(ctx, TemplatedEmailRequest{
		To:           email,
		TemplateName: "welcome",
		Variables: map[string]any{
			"name": name,
		},
		UserID: &userID,
	})
}

// SendPasswordResetEmail sends the password-reset template.
func (e *Engine) SendPasswordResetEmail(ctx context.Context, userID uuid.UUID, email, resetURL string) Result {
	return e.SendTemplatedEmail(ctx, TemplatedEmailRequest{
		To:           email,
		TemplateName: "password-reset",
		Variables: map[string]any{
			"resetUrl":    resetURL,
			"expiryHours": "1",
		},
		UserID: &userID,
	})
}

// SendSecurityAlert fans a security alert out to email and SMS
// concurrently. The two attempts are independent: one channel failing
// does not roll back or block the other. The SMS leg gates on the
// SECURITY category, which defaults SMS on.
func (e *Engine) SendSecurityAlert(ctx context.Context, userID uuid.UUID, email, phoneNumber, alertType string) (emailResult, smsResult Result) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		emailResult = e.SendTemplatedEmail(ctx, TemplatedEmailRequest{
			To:           email,
			TemplateName: "security-alert",
			Variables: map[string]any{
				"alertType": alertType,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
			UserID: &userID,
		})
	}()

	go func() {
		defer wg.Done()
		smsResult = e.sendSmsGated(ctx, SmsRequest{
			PhoneNumber: phoneNumber,
			Message:     fmt.Sprintf("Security Alert: %s. Check your email for details.", alertType),
			UserID:      &userID,
		}, db.CategorySecurity)
	}()

	wg.Wait()
	return emailResult, smsResult
}

// SendRoleChangeNotification notifies a user of a role change over the
// realtime channel and email concurrently.
func (e *Engine) SendRoleChangeNotification(ctx context.Context, userID uuid.UUID, email, roleName, action string) (realtimeResult, emailResult Result) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		realtimeResult = e.SendRealTime(userID, "role_change",
			fmt.Sprintf("Your role has been %s: %s", action, roleName))
	}()

	go func() {
		defer wg.Done()
		emailResult = e.SendTemplatedEmail(ctx, TemplatedEmailRequest{
			To:           email,
			TemplateName: "role-change",
			Variables: map[string]any{
				"roleName": roleName,
				"action":   action,
			},
			UserID: &userID,
		})
	}()

	wg.Wait()
	return realtimeResult, emailResult
}

// DispatchQueued drives one popped queue item through the templated send
// path and returns the audit log of the attempt so the worker can admit
// failures to the retry queue. A nil error with a FAILED log means the
// provider call failed but the attempt is on record.
func (e *Engine) DispatchQueued(ctx context.Context, item *queue.Item) (*db.NotificationLog, error) {
	userID := item.RequestedBy

	switch item.NotificationType {
	case db.TypeEmail:
		rendered := e.resolver.ResolveEmail(ctx, item.TemplateName, nil, e.config.DefaultLanguage)
		_, log := e.deliverEmail(ctx, provider.EmailMessage{
			To:       item.Recipient,
			Subject:  rendered.Subject,
			BodyHTML: rendered.BodyHTML,
			BodyText: rendered.BodyText,
		}, item.TemplateName, &userID)
		if log == nil {
			return nil, fmt.Errorf("no audit log written for queued email to %s", item.Recipient)
		}
		return log, nil
	case db.TypeSMS:
		body := e.resolver.ResolveSms(ctx, item.TemplateName, nil, e.config.DefaultLanguage)
		_, log := e.deliverSms(ctx, provider.SmsMessage{
			PhoneNumber: item.Recipient,
			Message:     body,
		}, item.TemplateName, &userID)
		if log == nil {
			return nil, fmt.Errorf("no audit log written for queued sms to %s", item.Recipient)
		}
		return log, nil
	default:
		return nil, fmt.Errorf("unsupported notification type: %s", item.NotificationType)
	}
}

// Resend re-drives a previously failed notification through the
// channel-appropriate provider and mutates the same log row with the
// outcome. This is the single place an existing log transitions back to
// SENT.
func (e *Engine) Resend(ctx context.Context, log *db.NotificationLog) (*db.NotificationLog, error) {
	var result provider.DeliveryResult

	switch log.NotificationType {
	case db.TypeEmail:
		result = e.providers.Email.Send(ctx, provider.EmailMessage{
			To:       log.Recipient,
			Subject:  deref(log.Subject),
			BodyHTML: deref(log.Content),
		})
	case db.TypeSMS:
		result = e.providers.Sms.Send(ctx, provider.SmsMessage{
			PhoneNumber: log.Recipient,
			Message:     deref(log.Content),
		})
	default:
		return nil, fmt.Errorf("unsupported notification type: %s", log.NotificationType)
	}

	status := db.StatusFailed
	var errMsg *string
	var sentAt *time.Time
	if result.Success {
		status = db.StatusSent
		now := time.Now().UTC()
		sentAt = &now
	} else if result.ErrorMessage != "" {
		errMsg = &result.ErrorMessage
	}

	if err := e.repo.UpdateLogOutcome(ctx, log.LogID, status, log.RetryCount, errMsg, sentAt); err != nil {
		e.logger.Error("failed to record resend outcome",
			zap.String("log_id", log.LogID.String()),
			zap.Error(err),
		)
	}

	log.Status = status
	if result.ErrorMessage != "" {
		log.ErrorMessage = &result.ErrorMessage
	}
	metrics.RecordProcessed(status, log.NotificationType)

	return log, nil
}

// deliverEmail validates the recipient, calls the provider and always
// writes an audit log reflecting the outcome.
func (e *Engine) deliverEmail(ctx context.Context, msg provider.EmailMessage, templateName string, userID *uuid.UUID) (Result, *db.NotificationLog) {
	var result provider.DeliveryResult
	if !e.providers.Email.Validate(msg.To) {
		result = provider.Failure(e.providers.Email.Name(),
			fmt.Errorf("invalid recipient address: %s", msg.To))
	} else {
		result = e.providers.Email.Send(ctx, msg)
	}

	log := e.writeLog(ctx, db.TypeEmail, msg.To, templateName, &msg.Subject, pickEmailContent(msg), result, userID)
	return resultFromDelivery(result, log), log
}

func (e *Engine) deliverSms(ctx context.Context, msg provider.SmsMessage, templateName string, userID *uuid.UUID) (Result, *db.NotificationLog) {
	var result provider.DeliveryResult
	if !e.providers.Sms.Validate(msg.PhoneNumber) {
		result = provider.Failure(e.providers.Sms.Name(),
			fmt.Errorf("invalid phone number: %s", msg.PhoneNumber))
	} else {
		result = e.providers.Sms.Send(ctx, msg)
	}

	content := msg.Message
	log := e.writeLog(ctx, db.TypeSMS, msg.PhoneNumber, templateName, nil, &content, result, userID)
	return resultFromDelivery(result, log), log
}

// writeLog records the attempt outcome. A persistence failure is logged
// but does not change the delivery outcome reported to the caller.
func (e *Engine) writeLog(
	ctx context.Context,
	notificationType, recipient, templateName string,
	subject, content *string,
	result provider.DeliveryResult,
	userID *uuid.UUID,
) *db.NotificationLog {
	status := db.StatusFailed
	var sentAt *time.Time
	if result.Success {
		status = db.StatusSent
		now := time.Now().UTC()
		sentAt = &now
	}

	log := &db.NotificationLog{
		LogID:            uuid.New(),
		NotificationType: notificationType,
		Recipient:        recipient,
		TemplateName:     templateName,
		Subject:          subject,
		Content:          content,
		Status:           status,
		Provider:         strptr(result.Provider),
		SentAt:           sentAt,
		RetryCount:       0,
		MaxRetries:       e.config.MaxRetries,
		UserID:           userID,
	}
	if result.ProviderMessageID != "" {
		log.ProviderMessageID = &result.ProviderMessageID
	}
	if result.ErrorMessage != "" {
		log.ErrorMessage = &result.ErrorMessage
	}

	if err := e.repo.CreateLog(ctx, log); err != nil {
		e.logger.Error("failed to write notification log",
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		return nil
	}

	metrics.RecordProcessed(status, notificationType)
	return log
}

func resultFromDelivery(result provider.DeliveryResult, log *db.NotificationLog) Result {
	res := Result{
		Success:  result.Success,
		Provider: result.Provider,
		Message:  result.ErrorMessage,
	}
	if log != nil {
		res.LogID = &log.LogID
	}
	return res
}

func pickEmailContent(msg provider.EmailMessage) *string {
	if msg.BodyHTML != "" {
		return &msg.BodyHTML
	}
	if msg.BodyText != "" {
		return &msg.BodyText
	}
	return nil
}

func strptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
