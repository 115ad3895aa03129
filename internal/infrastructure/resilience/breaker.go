package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of trial requests allowed while half-open
	MaxRequests uint32
	// Interval clears closed-state counts periodically; zero keeps them forever
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing the backend
	Timeout time.Duration
	// ReadyToTrip decides, after a closed-state failure, whether to open
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a request error; nil errors are always successes
	IsSuccessful func(err error) bool
	// OnStateChange is called whenever the state changes, with the lock released
	OnStateChange func(name string, from State, to State)
	// Now overrides the clock (tests)
	Now func() time.Time
}

// Counts holds the statistics for the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards calls to the monitor backend
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	trips      uint64
}

// DefaultSettings trips after five consecutive failures and probes again
// after ten seconds.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	b.startGeneration(settings.Now())
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, change := b.currentState(b.settings.Now())
	b.mu.Unlock()

	change.notify(b)
	return state
}

// Counts returns a copy of the current generation's counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Trips returns how many times the breaker has opened
func (b *Breaker) Trips() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.trips
}

// Execute runs req if the breaker accepts it
func (b *Breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	return Do(context.Background(), b, func(context.Context) (interface{}, error) {
		return req()
	})
}

// Do runs fn through the breaker and returns its typed result. A context
// that is already done is reported without touching the breaker.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	generation, err := b.beforeRequest()
	if err != nil {
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := fn(ctx)
	b.afterRequest(generation, b.settings.IsSuccessful(err))
	return result, err
}

type stateChange struct {
	from, to State
	changed  bool
}

func (c stateChange) notify(b *Breaker) {
	if c.changed && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, c.from, c.to)
	}
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	state, generation, change := b.currentState(b.settings.Now())

	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	b.mu.Unlock()

	change.notify(b)
	return generation, err
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	now := b.settings.Now()
	state, generation, change := b.currentState(now)

	// Results from a previous generation are stale.
	if generation != before {
		b.mu.Unlock()
		change.notify(b)
		return
	}

	var next stateChange
	if success {
		next = b.onSuccess(state, now)
	} else {
		next = b.onFailure(state, now)
	}
	b.mu.Unlock()

	change.notify(b)
	next.notify(b)
}

func (b *Breaker) onSuccess(state State, now time.Time) stateChange {
	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
		return b.setState(StateClosed, now)
	}
	return stateChange{}
}

func (b *Breaker) onFailure(state State, now time.Time) stateChange {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.settings.ReadyToTrip(b.counts) {
			return b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		return b.setState(StateOpen, now)
	}
	return stateChange{}
}

// currentState advances time-based transitions. Callers hold b.mu.
func (b *Breaker) currentState(now time.Time) (State, uint64, stateChange) {
	var change stateChange
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.startGeneration(now)
		}
	case StateOpen:
		if !b.expiry.After(now) {
			change = b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation, change
}

func (b *Breaker) setState(state State, now time.Time) stateChange {
	if b.state == state {
		return stateChange{}
	}

	prev := b.state
	b.state = state
	if state == StateOpen {
		b.trips++
	}
	b.startGeneration(now)

	return stateChange{from: prev, to: state, changed: true}
}

func (b *Breaker) startGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case StateClosed:
		if b.settings.Interval > 0 {
			b.expiry = now.Add(b.settings.Interval)
		} else {
			b.expiry = time.Time{}
		}
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	default:
		b.expiry = time.Time{}
	}
}
