package provider

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogEmailSender logs instead of sending email (development/testing).
type LogEmailSender struct {
	logger *zap.Logger
}

func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) Send(_ context.Context, msg EmailMessage) DeliveryResult {
	s.logger.Info("email logged (development mode)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return DeliveryResult{
		Success:           true,
		Provider:          s.Name(),
		ProviderMessageID: uuid.NewString(),
	}
}

func (s *LogEmailSender) Validate(address string) bool {
	return emailPattern.MatchString(address)
}

func (s *LogEmailSender) Name() string {
	return "LOG_EMAIL"
}

// MockSmsSender logs instead of sending SMS (development/testing).
type MockSmsSender struct {
	logger *zap.Logger
}

func NewMockSmsSender(logger *zap.Logger) *MockSmsSender {
	return &MockSmsSender{logger: logger}
}

func (s *MockSmsSender) Send(_ context.Context, msg SmsMessage) DeliveryResult {
	s.logger.Info("sms logged (development mode)",
		zap.String("phone_number", msg.PhoneNumber),
		zap.String("message", msg.Message),
	)
	return DeliveryResult{
		Success:           true,
		Provider:          s.Name(),
		ProviderMessageID: uuid.NewString(),
	}
}

func (s *MockSmsSender) Validate(phoneNumber string) bool {
	return phonePattern.MatchString(phoneNumber)
}

func (s *MockSmsSender) Name() string {
	return "MOCK_SMS"
}
