package policy

import (
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed means calls pass through normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means calls are fast-failed without reaching the operation.
	CircuitOpen
	// CircuitHalfOpen means a limited number of trial calls are allowed through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the failure ratio (0..1] over the rolling window
	// at which the circuit opens.
	// Default: 0.5
	FailureThreshold float64

	// SamplingDuration bounds the rolling window; samples older than this
	// are discarded.
	// Default: 30s
	SamplingDuration time.Duration

	// MinimumThroughput is the number of samples the window must hold
	// before the failure ratio is acted on.
	// Default: 10
	MinimumThroughput int

	// DurationOfBreak is how long the circuit stays open before admitting
	// trial calls.
	// Default: 30s
	DurationOfBreak time.Duration

	// MaxDurationOfBreak caps the break duration, which doubles after each
	// failed half-open probe and resets when the circuit closes.
	// Default: 8 * DurationOfBreak
	MaxDurationOfBreak time.Duration

	// HalfOpenMaxProbes is the number of trial calls admitted while
	// half-open; further calls are rejected with ErrTooManyProbes.
	// Default: 1
	HalfOpenMaxProbes int

	// OnStateChange is called after every state transition, outside the
	// breaker lock, so it may log, record metrics, or read the breaker.
	// Transitions observed by one call are delivered before that call
	// returns.
	OnStateChange func(from, to CircuitState)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 || c.FailureThreshold > 1 {
		c.FailureThreshold = 0.5
	}
	if c.SamplingDuration <= 0 {
		c.SamplingDuration = 30 * time.Second
	}
	if c.MinimumThroughput <= 0 {
		c.MinimumThroughput = 10
	}
	if c.DurationOfBreak <= 0 {
		c.DurationOfBreak = 30 * time.Second
	}
	if c.MaxDurationOfBreak <= 0 {
		c.MaxDurationOfBreak = 8 * c.DurationOfBreak
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = 1
	}
	return c
}

type sample struct {
	at      time.Time
	failure bool
}

type stateChange struct {
	from, to CircuitState
}

// Breaker is a rolling-window failure-ratio circuit breaker. One Breaker
// guards one logical operation and is shared by every caller of that
// operation's pipeline; all state lives behind a single mutex so transitions
// are atomic with respect to concurrent callers.
type Breaker struct {
	config BreakerConfig

	mu             sync.Mutex
	state          CircuitState
	window         []sample
	lastTransition time.Time
	breakDuration  time.Duration
	probesInUse    int
	nowFn          func() time.Time
	pending        []stateChange
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	config = config.withDefaults()
	return &Breaker{
		config:         config,
		state:          CircuitClosed,
		lastTransition: time.Now(),
		breakDuration:  config.DurationOfBreak,
	}
}

// SetClock overrides the breaker clock, primarily for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFn = now
}

func (b *Breaker) now() time.Time {
	if b.nowFn != nil {
		return b.nowFn()
	}
	return time.Now()
}

// Allow reports whether a call may proceed. It returns nil, ErrCircuitOpen,
// or ErrTooManyProbes. A nil return in the half-open state consumes one of
// the trial slots; the slot is returned by RecordSuccess, RecordFailure, or
// RecordCanceled.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var err error
	switch b.stateLocked() {
	case CircuitOpen:
		err = ErrCircuitOpen
	case CircuitHalfOpen:
		if b.probesInUse >= b.config.HalfOpenMaxProbes {
			err = ErrTooManyProbes
		} else {
			b.probesInUse++
		}
	}
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
	return err
}

// RecordSuccess records a successful execution. A successful half-open
// probe closes the circuit, clears the rolling window, and resets the break
// duration.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	switch b.stateLocked() {
	case CircuitClosed:
		b.recordLocked(false)
	case CircuitHalfOpen:
		b.window = b.window[:0]
		b.breakDuration = b.config.DurationOfBreak
		b.transitionLocked(CircuitClosed)
	}
	// Results arriving while open are ignored; the call was admitted before
	// the circuit opened.
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// RecordFailure records a failed execution. In the closed state the failure
// enters the rolling window and may open the circuit; a failed half-open
// probe re-opens it with a doubled (capped) break duration.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	switch b.stateLocked() {
	case CircuitClosed:
		b.recordLocked(true)
		if b.shouldOpenLocked() {
			b.transitionLocked(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.breakDuration = min(b.breakDuration*2, b.config.MaxDurationOfBreak)
		b.transitionLocked(CircuitOpen)
	}
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// RecordCanceled returns the probe slot of an admitted call that was
// canceled before producing a usable result. Cancellation says nothing
// about the dependency, so no sample enters the window; without the release
// a canceled half-open probe would hold its slot forever and pin the
// circuit half-open.
func (b *Breaker) RecordCanceled() {
	b.mu.Lock()
	if b.stateLocked() == CircuitHalfOpen && b.probesInUse > 0 {
		b.probesInUse--
	}
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	state := b.stateLocked()
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
	return state
}

// Reset returns the breaker to closed and clears the rolling window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.window = b.window[:0]
	b.breakDuration = b.config.DurationOfBreak
	b.probesInUse = 0
	b.transitionLocked(CircuitClosed)
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// CircuitStatus is a point-in-time snapshot for monitoring endpoints.
type CircuitStatus struct {
	State          CircuitState
	FailureCount   int // failures currently in the rolling window
	WindowSize     int // samples currently in the rolling window
	LastTransition time.Time
}

// Status returns a snapshot of the breaker for health reporting.
func (b *Breaker) Status() CircuitStatus {
	b.mu.Lock()
	state := b.stateLocked()
	b.pruneLocked(b.now())

	failures := 0
	for _, s := range b.window {
		if s.failure {
			failures++
		}
	}
	status := CircuitStatus{
		State:          state,
		FailureCount:   failures,
		WindowSize:     len(b.window),
		LastTransition: b.lastTransition,
	}
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.notify(pending)
	return status
}

// stateLocked applies the lazy open -> half-open transition once the break
// duration has elapsed.
func (b *Breaker) stateLocked() CircuitState {
	if b.state == CircuitOpen && b.now().Sub(b.lastTransition) >= b.breakDuration {
		b.transitionLocked(CircuitHalfOpen)
	}
	return b.state
}

func (b *Breaker) transitionLocked(to CircuitState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastTransition = b.now()
	if to == CircuitHalfOpen {
		b.probesInUse = 0
	}
	if b.config.OnStateChange != nil {
		b.pending = append(b.pending, stateChange{from: from, to: to})
	}
}

// takePendingLocked hands queued transition notifications to the caller,
// which delivers them after releasing the lock.
func (b *Breaker) takePendingLocked() []stateChange {
	p := b.pending
	b.pending = nil
	return p
}

func (b *Breaker) notify(changes []stateChange) {
	for _, c := range changes {
		b.config.OnStateChange(c.from, c.to)
	}
}

func (b *Breaker) recordLocked(failure bool) {
	now := b.now()
	b.pruneLocked(now)
	b.window = append(b.window, sample{at: now, failure: failure})
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.config.SamplingDuration)
	i := 0
	for i < len(b.window) && !b.window[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		b.window = append(b.window[:0], b.window[i:]...)
	}
}

func (b *Breaker) shouldOpenLocked() bool {
	total := len(b.window)
	if total < b.config.MinimumThroughput {
		return false
	}
	failures := 0
	for _, s := range b.window {
		if s.failure {
			failures++
		}
	}
	return float64(failures) >= b.config.FailureThreshold*float64(total)
}
