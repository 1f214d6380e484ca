// Package breaker stops recomputing a dataset whose source keeps failing.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/23skdu/proximity/internal/metrics"
)

// ErrOpen is returned while the breaker refuses calls.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
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

// Settings configures a Breaker.
type Settings struct {
	// Name labels metrics, usually the dataset name.
	Name string
	// Failures is the number of consecutive failures that opens the
	// breaker. Zero means 5.
	Failures uint32
	// Cooldown is how long the breaker stays open before letting one trial
	// call through. Zero means 30s.
	Cooldown time.Duration
	// OnStateChange is called with the lock held on every transition.
	OnStateChange func(name string, from, to State)
}

// Breaker is a closed/open/half-open state machine. While open every call
// fails fast with ErrOpen; after the cooldown one trial call decides whether
// it closes again.
type Breaker struct {
	name          string
	failures      uint32
	cooldown      time.Duration
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu          sync.Mutex
	state       State
	consecutive uint32
	inFlight    bool
	openedAt    time.Time
}

// New creates a closed breaker.
func New(st Settings) *Breaker {
	b := &Breaker{
		name:          st.Name,
		failures:      st.Failures,
		cooldown:      st.Cooldown,
		onStateChange: st.OnStateChange,
		now:           time.Now,
	}
	if b.failures == 0 {
		b.failures = 5
	}
	if b.cooldown == 0 {
		b.cooldown = 30 * time.Second
	}
	return b
}

// Name returns the name of the Breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

func (b *Breaker) current() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.consecutive = 0
	b.inFlight = false
	if to == StateOpen {
		b.openedAt = b.now()
	}
	metrics.BreakerTransitionsTotal.WithLabelValues(b.name, to.String()).Inc()
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// allow reserves a call slot.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.current() {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.inFlight {
			return false
		}
		b.inFlight = true
	}
	return true
}

// neutral reports whether err says nothing about the health of the source.
// A caller that cancels or runs out of time is not a source failure.
func neutral(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (b *Breaker) done(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if neutral(err) {
		b.inFlight = false
		return
	}
	if err == nil {
		b.consecutive = 0
		b.setState(StateClosed)
		return
	}
	switch b.state {
	case StateHalfOpen:
		b.setState(StateOpen)
	case StateClosed:
		b.consecutive++
		if b.consecutive >= b.failures {
			b.setState(StateOpen)
		}
	}
}

// Reset closes the breaker and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.consecutive = 0
}

// Execute runs fn through b. A refused call returns ErrOpen without running
// fn. An error from fn counts as a failure unless it is a context
// cancellation or deadline, which leaves the breaker as it was.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if !b.allow() {
		metrics.BreakerRejectionsTotal.WithLabelValues(b.name).Inc()
		var zero T
		return zero, ErrOpen
	}
	v, err := fn()
	b.done(err)
	return v, err
}
