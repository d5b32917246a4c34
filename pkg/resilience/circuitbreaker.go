// Package resilience guards calls to optional backends such as the shared
// rate limit store.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker opens after maxFailures consecutive failures and allows one probe
// once cooldown has passed since the last failure.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	state    State
	failures int
	openedAt time.Time
	probing  bool
	onChange func(from, to State)
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// OnStateChange registers a callback invoked on every transition. It runs
// with the breaker lock held and must not call back into the breaker.
func OnStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// NewBreaker creates a closed breaker. maxFailures below one is treated as one.
func NewBreaker(maxFailures int, cooldown time.Duration, opts ...Option) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	b := &Breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn unless the breaker is open and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if !b.acquire() {
		return ErrOpen
	}
	err := fn()
	b.record(err == nil)
	return err
}

// State returns the current position, moving Open to HalfOpen when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(StateClosed)
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if ok {
		b.failures = 0
		b.transition(StateClosed)
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
