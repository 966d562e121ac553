package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/circuitbreaker"
	"github.com/heraldapp/herald/internal/config"
)

// Registry exposes exactly one active implementation per capability,
// resolved once at startup from configuration.
type Registry struct {
	Email     EmailSender
	Sms       SmsSender
	Templates TemplateStore
}

// NewRegistry resolves the configured provider kinds into concrete
// implementations. Network-backed email and SMS senders are wrapped in
// circuit breakers so a dead backend fails fast.
func NewRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	reg := &Registry{}

	switch cfg.EmailProvider {
	case config.EmailProviderSES:
		sender, err := NewSESSender(ctx, SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create SES sender: %w", err)
		}
		reg.Email = NewProtectedEmailSender(sender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), logger), logger)
	case config.EmailProviderSMTP:
		sender := NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		reg.Email = NewProtectedEmailSender(sender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("smtp"), logger), logger)
	case config.EmailProviderLog:
		reg.Email = NewLogEmailSender(logger)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.EmailProvider)
	}

	switch cfg.SmsProvider {
	case config.SmsProviderSNS:
		sender, err := NewSNSSender(ctx, SNSConfig{Region: cfg.SNSRegion}, logger)
		if err != nil {
			return nil, fmt.Errorf("create SNS sender: %w", err)
		}
		reg.Sms = NewProtectedSmsSender(sender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("sns"), logger), logger)
	case config.SmsProviderMock:
		reg.Sms = NewMockSmsSender(logger)
	default:
		return nil, fmt.Errorf("unknown sms provider: %s", cfg.SmsProvider)
	}

	switch cfg.TemplateStorage {
	case config.TemplateStorageFile:
		reg.Templates = NewFileStore(cfg.TemplateDir, logger)
	case config.TemplateStorageS3:
		store, err := NewS3Store(ctx, S3Config{
			Region: cfg.AWSRegion,
			Bucket: cfg.S3Bucket,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create S3 template store: %w", err)
		}
		reg.Templates = store
	default:
		return nil, fmt.Errorf("unknown template storage: %s", cfg.TemplateStorage)
	}

	logger.Info("provider registry initialized",
		zap.String("email", reg.Email.Name()),
		zap.String("sms", reg.Sms.Name()),
		zap.String("templates", reg.Templates.Name()),
	)

	return reg, nil
}
