package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/circuitbreaker"
)

type fakeEmailSender struct {
	mu   sync.Mutex
	sent int
	fail bool
}

func (f *fakeEmailSender) Send(_ context.Context, _ EmailMessage) DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	if f.fail {
		return Failure("fake", errTestDown)
	}
	return DeliveryResult{Success: true, Provider: "fake", ProviderMessageID: "msg-1"}
}

func (f *fakeEmailSender) Validate(address string) bool { return strings.Contains(address, "@") }
func (f *fakeEmailSender) Name() string                 { return "fake" }

func (f *fakeEmailSender) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

type fakeSmsSender struct {
	fail bool
	sent int
}

func (f *fakeSmsSender) Send(_ context.Context, _ SmsMessage) DeliveryResult {
	f.sent++
	if f.fail {
		return Failure("fake-sms", errTestDown)
	}
	return DeliveryResult{Success: true, Provider: "fake-sms"}
}

func (f *fakeSmsSender) Validate(phoneNumber string) bool { return strings.HasPrefix(phoneNumber, "+") }
func (f *fakeSmsSender) Name() string                     { return "fake-sms" }

var errTestDown = errors.New("backend down")

func testBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:                "test",
		MaxFailures:         2,
		RecoveryTimeout:     10 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	}
}

func TestProtectedEmailSender_PassThrough(t *testing.T) {
	inner := &fakeEmailSender{}
	breaker := circuitbreaker.New(testBreakerConfig(), zap.NewNop())
	sender := NewProtectedEmailSender(inner, breaker, zap.NewNop())

	result := sender.Send(context.Background(), EmailMessage{To: "a@example.com"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if inner.sends() != 1 {
		t.Errorf("inner sends: got %d", inner.sends())
	}
	if breaker.GetState() != circuitbreaker.StateClosed {
		t.Errorf("breaker state: got %s", breaker.GetState())
	}
}

func TestProtectedEmailSender_OpensAndFailsFast(t *testing.T) {
	inner := &fakeEmailSender{fail: true}
	breaker := circuitbreaker.New(testBreakerConfig(), zap.NewNop())
	sender := NewProtectedEmailSender(inner, breaker, zap.NewNop())
	ctx := context.Background()

	sender.Send(ctx, EmailMessage{To: "a@example.com"})
	sender.Send(ctx, EmailMessage{To: "a@example.com"})

	if breaker.GetState() != circuitbreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", breaker.GetState())
	}

	result := sender.Send(ctx, EmailMessage{To: "a@example.com"})
	if result.Success {
		t.Error("expected fast failure while open")
	}
	if !strings.Contains(result.ErrorMessage, "circuit breaker is open") {
		t.Errorf("error message: got %q", result.ErrorMessage)
	}
	if inner.sends() != 2 {
		t.Errorf("inner must not be called while open, sends=%d", inner.sends())
	}
}

func TestProtectedEmailSender_RecoversAfterProbe(t *testing.T) {
	inner := &fakeEmailSender{fail: true}
	breaker := circuitbreaker.New(testBreakerConfig(), zap.NewNop())
	sender := NewProtectedEmailSender(inner, breaker, zap.NewNop())
	ctx := context.Background()

	sender.Send(ctx, EmailMessage{To: "a@example.com"})
	sender.Send(ctx, EmailMessage{To: "a@example.com"})

	inner.fail = false
	time.Sleep(20 * time.Millisecond)

	result := sender.Send(ctx, EmailMessage{To: "a@example.com"})
	if !result.Success {
		t.Fatalf("probe should pass through, got %+v", result)
	}
	if breaker.GetState() != circuitbreaker.StateClosed {
		t.Errorf("expected closed after successful probe, got %s", breaker.GetState())
	}
}

func TestProtectedSmsSender_OpensAndFailsFast(t *testing.T) {
	inner := &fakeSmsSender{fail: true}
	breaker := circuitbreaker.New(testBreakerConfig(), zap.NewNop())
	sender := NewProtectedSmsSender(inner, breaker, zap.NewNop())
	ctx := context.Background()

	sender.Send(ctx, SmsMessage{PhoneNumber: "+15551234567"})
	sender.Send(ctx, SmsMessage{PhoneNumber: "+15551234567"})

	result := sender.Send(ctx, SmsMessage{PhoneNumber: "+15551234567"})
	if result.Success {
		t.Error("expected fast failure while open")
	}
	if inner.sent != 2 {
		t.Errorf("inner must not be called while open, sends=%d", inner.sent)
	}
}

func TestProtectedSenders_DelegateValidateAndName(t *testing.T) {
	breaker := circuitbreaker.New(testBreakerConfig(), zap.NewNop())
	email := NewProtectedEmailSender(&fakeEmailSender{}, breaker, zap.NewNop())
	sms := NewProtectedSmsSender(&fakeSmsSender{}, breaker, zap.NewNop())

	if email.Name() != "fake" || sms.Name() != "fake-sms" {
		t.Error("protected senders must report the wrapped sender name")
	}
	if !email.Validate("a@example.com") || email.Validate("nope") {
		t.Error("email validation must delegate to wrapped sender")
	}
	if !sms.Validate("+15551234567") || sms.Validate("15551234567") {
		t.Error("sms validation must delegate to wrapped sender")
	}
}
