// Package provider holds the delivery capability contracts and the
// concrete email, SMS and template-storage implementations behind them.
// Provider failures never surface as errors: every implementation folds
// its outcome into a DeliveryResult so callers need no provider-specific
// error handling.
package provider

import (
	"context"
	"errors"
)

// ErrTemplateNotFound is returned by TemplateStore.Get when no content
// exists for the requested (name, language).
var ErrTemplateNotFound = errors.New("template not found")

// EmailMessage is the provider-agnostic email payload.
type EmailMessage struct {
	To       string
	From     string
	Subject  string
	BodyHTML string
	BodyText string
}

// SmsMessage is the provider-agnostic SMS payload.
type SmsMessage struct {
	PhoneNumber string
	Message     string
}

// DeliveryResult is the outcome of one provider call. ErrorMessage is set
// only when Success is false.
type DeliveryResult struct {
	Success           bool   `json:"success"`
	Provider          string `json:"provider"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// Failure builds a failed DeliveryResult for the named provider.
func Failure(providerName string, err error) DeliveryResult {
	return DeliveryResult{
		Success:      false,
		Provider:     providerName,
		ErrorMessage: err.Error(),
	}
}

// EmailSender is the email delivery capability.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) DeliveryResult
	Validate(address string) bool
	Name() string
}

// SmsSender is the SMS delivery capability.
type SmsSender interface {
	Send(ctx context.Context, msg SmsMessage) DeliveryResult
	Validate(phoneNumber string) bool
	Name() string
}

// TemplateStore is the raw template content capability, used as the
// storage tier of template resolution when the database has no row.
type TemplateStore interface {
	Get(ctx context.Context, name, language string) (string, error)
	Put(ctx context.Context, name, language, content string) error
	Exists(ctx context.Context, name, language string) (bool, error)
	Name() string
}
