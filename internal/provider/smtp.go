package provider

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPSender sends email over plain SMTP via gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPSender creates an SMTP email sender.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send dials the SMTP server, sends the message, and closes the
// connection. SMTP has no provider message id, so one is generated for
// the audit trail.
func (s *SMTPSender) Send(_ context.Context, msg EmailMessage) DeliveryResult {
	from := msg.From
	if from == "" {
		from = s.from
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.BodyHTML != "" {
		m.SetBody("text/html", msg.BodyHTML)
		if msg.BodyText != "" {
			m.AddAlternative("text/plain", msg.BodyText)
		}
	} else {
		m.SetBody("text/plain", msg.BodyText)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("smtp send failed",
			zap.Error(err),
			zap.String("to", msg.To),
		)
		return Failure(s.Name(), err)
	}

	s.logger.Info("email sent via SMTP", zap.String("to", msg.To))

	return DeliveryResult{
		Success:           true,
		Provider:          s.Name(),
		ProviderMessageID: uuid.NewString(),
	}
}

// Validate checks the basic email address format.
func (s *SMTPSender) Validate(address string) bool {
	return emailPattern.MatchString(address)
}

func (s *SMTPSender) Name() string {
	return "SMTP"
}
