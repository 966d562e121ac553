package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/circuitbreaker"
)

// ProtectedEmailSender wraps an EmailSender with a circuit breaker.
// While the circuit is open, sends fail fast with a failed
// DeliveryResult instead of waiting on a dead backend.
type ProtectedEmailSender struct {
	sender  EmailSender
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedEmailSender wraps sender with breaker.
func NewProtectedEmailSender(sender EmailSender, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ProtectedEmailSender {
	return &ProtectedEmailSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedEmailSender) Send(ctx context.Context, msg EmailMessage) DeliveryResult {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected email send",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return Failure(p.sender.Name(),
			fmt.Errorf("%w: %s unavailable", circuitbreaker.ErrCircuitOpen, p.breaker.Name()))
	}

	result := p.sender.Send(ctx, msg)
	if result.Success {
		p.breaker.RecordSuccess()
	} else {
		p.breaker.RecordFailure()
	}
	return result
}

func (p *ProtectedEmailSender) Validate(address string) bool {
	return p.sender.Validate(address)
}

func (p *ProtectedEmailSender) Name() string {
	return p.sender.Name()
}

// ProtectedSmsSender wraps an SmsSender with a circuit breaker.
type ProtectedSmsSender struct {
	sender  SmsSender
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSmsSender wraps sender with breaker.
func NewProtectedSmsSender(sender SmsSender, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ProtectedSmsSender {
	return &ProtectedSmsSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedSmsSender) Send(ctx context.Context, msg SmsMessage) DeliveryResult {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected sms send",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return Failure(p.sender.Name(),
			fmt.Errorf("%w: %s unavailable", circuitbreaker.ErrCircuitOpen, p.breaker.Name()))
	}

	result := p.sender.Send(ctx, msg)
	if result.Success {
		p.breaker.RecordSuccess()
	} else {
		p.breaker.RecordFailure()
	}
	return result
}

func (p *ProtectedSmsSender) Validate(phoneNumber string) bool {
	return p.sender.Validate(phoneNumber)
}

func (p *ProtectedSmsSender) Name() string {
	return p.sender.Name()
}
