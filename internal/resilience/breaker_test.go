package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Do(func() error { return errBoom })
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed, got %v", got)
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3})

	failN(b, 2)
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed after 2 failures, got %v", got)
	}

	failN(b, 1)
	if got := b.State(); got != StateOpen {
		t.Errorf("expected open after 3 failures, got %v", got)
	}
}

func TestBreaker_OpenRejectsWithoutCallingFn(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: time.Hour})
	failN(b, 1)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn must not be called while the breaker is open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3})

	failN(b, 2)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	failN(b, 2)

	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed (counter reset by success), got %v", got)
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	failN(b, 1)

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != StateHalfOpen {
		t.Errorf("expected half-open after cooldown, got %v", got)
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		Cooldown:    time.Millisecond,
		ProbeBudget: 2,
	})
	failN(b, 1)
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed after successful probes, got %v", got)
	}
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		Cooldown:    time.Millisecond,
		ProbeBudget: 3,
	})
	failN(b, 1)
	time.Sleep(5 * time.Millisecond)

	failN(b, 1) // failed probe
	if got := b.State(); got != StateOpen {
		t.Errorf("expected open after failed probe, got %v", got)
	}
}

func TestBreaker_ResetClosesImmediately(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: time.Hour})
	failN(b, 1)

	b.Reset()
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed after Reset, got %v", got)
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Errorf("Do after Reset: %v", err)
	}
}
