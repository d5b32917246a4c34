package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return NewBreaker(maxFailures, time.Second, WithClock(clock.now)), clock
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3)

	for i := range 3 {
		if err := b.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i+1, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("open breaker ran the call: err=%v called=%v", err, called)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3)

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	_ = b.Execute(succeed)
	_ = b.Execute(fail)

	if b.State() != StateClosed || b.Failures() != 1 {
		t.Fatalf("state=%s failures=%d", b.State(), b.Failures())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{"success closes", succeed, StateClosed},
		{"failure reopens", fail, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(1)
			_ = b.Execute(fail)

			clock.advance(999 * time.Millisecond)
			if b.State() != StateOpen {
				t.Fatalf("breaker left open state before cooldown: %s", b.State())
			}
			clock.advance(time.Millisecond)
			if b.State() != StateHalfOpen {
				t.Fatalf("expected half-open, got %s", b.State())
			}

			_ = b.Execute(tt.probe)
			if b.State() != tt.want {
				t.Fatalf("expected %s after probe, got %s", tt.want, b.State())
			}
		})
	}
}

func TestBreaker_SingleProbeInHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(1)
	_ = b.Execute(fail)
	clock.advance(time.Second)

	err := b.Execute(func() error {
		if inner := b.Execute(succeed); !errors.Is(inner, ErrOpen) {
			t.Errorf("second probe allowed: %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
}

func TestBreaker_ResetAndStateChanges(t *testing.T) {
	var transitions []string
	b := NewBreaker(1, time.Minute, OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	_ = b.Execute(fail)
	b.Reset()

	if b.State() != StateClosed || b.Failures() != 0 {
		t.Fatalf("reset left state=%s failures=%d", b.State(), b.Failures())
	}
	if len(transitions) != 2 || transitions[0] != "closed->open" || transitions[1] != "open->closed" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	} {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
