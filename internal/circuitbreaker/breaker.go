// Package circuitbreaker guards calls to the external reasoning and sandbox
// services. When a dependency fails repeatedly the breaker opens and sessions
// fail fast into their stage fallbacks instead of stacking up on a dead
// endpoint.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without attempting the call while the breaker is open.
	ErrOpen = errors.New("circuit breaker open")
	// ErrProbeLimit is returned when the half-open probe budget is spent.
	ErrProbeLimit = errors.New("circuit breaker probe limit reached")
)

// Config tunes one breaker.
type Config struct {
	// FailureThreshold consecutive failures trip the breaker while closed.
	FailureThreshold uint32
	// SuccessThreshold consecutive probe successes close it again.
	SuccessThreshold uint32
	// MaxProbes bounds concurrent requests while half-open.
	MaxProbes uint32
	// OpenFor is how long the breaker stays open before probing.
	OpenFor time.Duration
	// ResetEvery clears the closed-state counters. Zero keeps them forever.
	ResetEvery time.Duration
}

// DefaultConfig suits the oracle and sandbox HTTP clients.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		MaxProbes:        3,
		OpenFor:          10 * time.Second,
		ResetEvery:       time.Minute,
	}
}

// Counts is a snapshot of the current generation's traffic.
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
		expiry: time.Now().Add(cfg.ResetEvery),
	}
}

// Execute runs fn if the breaker admits the call and records the outcome.
// A panic in fn counts as a failure and is re-raised.
func (b *Breaker) Execute(fn func() error) error {
	gen, err := b.admit()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			b.settle(gen, false)
			panic(r)
		}
	}()
	err = fn()
	b.settle(gen, err == nil)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.currentState(time.Now())
	return state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, gen := b.currentState(now)
	switch {
	case state == StateOpen:
		return gen, ErrOpen
	case state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxProbes:
		return gen, ErrProbeLimit
	}
	b.counts.Requests++
	return gen, nil
}

func (b *Breaker) settle(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.currentState(now)
	if current != gen {
		// The breaker moved on while this call was in flight.
		return
	}

	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.newGeneration(now)
	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}

func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}
	switch b.state {
	case StateClosed:
		if b.cfg.ResetEvery == 0 {
			b.expiry = time.Time{}
		} else {
			b.expiry = now.Add(b.cfg.ResetEvery)
		}
	case StateOpen:
		b.expiry = now.Add(b.cfg.OpenFor)
	default:
		b.expiry = time.Time{}
	}
}
