package circuitbreaker

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(maxFailures int, recovery time.Duration) *CircuitBreaker {
	return New(Config{
		Name:                "test",
		MaxFailures:         maxFailures,
		RecoveryTimeout:     recovery,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
}

func TestBreaker_StartsClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("closed breaker must allow requests")
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.GetState())
	}
	if cb.Allow() {
		t.Error("open breaker must reject requests")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Error("non-consecutive failures must not open the circuit")
	}
}

func TestBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe request should be allowed after recovery timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("expected half-open, got %s", cb.GetState())
	}

	// Only one probe fits while half-open.
	if cb.Allow() {
		t.Error("second probe must be rejected")
	}
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.Allow()
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("closed breaker must allow requests again")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.Allow()
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow()
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Errorf("expected re-opened after failed probe, got %s", cb.GetState())
	}
}

func TestBreaker_StatsCounters(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)

	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow() // rejected

	stats := cb.Stats()
	if stats.State != "open" {
		t.Errorf("state: got %s", stats.State)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("total requests: got %d", stats.TotalRequests)
	}
	if stats.TotalFailures != 2 {
		t.Errorf("total failures: got %d", stats.TotalFailures)
	}
	if stats.TotalRejected != 1 {
		t.Errorf("total rejected: got %d", stats.TotalRejected)
	}
}
