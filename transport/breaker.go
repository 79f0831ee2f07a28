package transport

import (
	"errors"
	"sync"
	"time"
)

// State is the state of a circuit.
type State int

const (
	// StateClosed lets requests through.
	StateClosed State = iota
	// StateOpen fails requests fast.
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

// ErrCircuitOpen is returned while a host's circuit is open.
var ErrCircuitOpen = errors.New("transport: circuit breaker is open")

type circuit struct {
	state           State
	failures        int
	lastStateChange time.Time
	probing         bool
}

// Breaker tracks consecutive failures per host and opens the circuit once
// threshold is reached. After cooldown one probe request is allowed; its
// outcome closes or reopens the circuit.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreaker returns a Breaker. Non-positive arguments fall back to the
// DefaultConfig values.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	def := DefaultConfig()
	if threshold <= 0 {
		threshold = def.BreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = def.BreakerCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// Allow reports whether a request to host may proceed.
func (b *Breaker) Allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(host)
	switch c.state {
	case StateOpen:
		if b.now().Sub(c.lastStateChange) < b.cooldown {
			return ErrCircuitOpen
		}
		c.state = StateHalfOpen
		c.lastStateChange = b.now()
		c.probing = true
		return nil
	case StateHalfOpen:
		if c.probing {
			return ErrCircuitOpen
		}
		c.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a successful request to host.
func (b *Breaker) Success(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(host)
	if c.state == StateHalfOpen {
		c.state = StateClosed
		c.lastStateChange = b.now()
	}
	c.failures = 0
	c.probing = false
}

// Failure records a failed request to host.
func (b *Breaker) Failure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(host)
	c.failures++
	c.probing = false
	switch c.state {
	case StateClosed:
		if c.failures >= b.threshold {
			c.state = StateOpen
			c.lastStateChange = b.now()
		}
	case StateHalfOpen:
		c.state = StateOpen
		c.lastStateChange = b.now()
	}
}

// State returns the state of host's circuit.
func (b *Breaker) State(host string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[host]
	if !ok {
		return StateClosed
	}
	if c.state == StateOpen && b.now().Sub(c.lastStateChange) >= b.cooldown {
		return StateHalfOpen
	}
	return c.state
}

// must be called with b.mu held
func (b *Breaker) get(host string) *circuit {
	c, ok := b.circuits[host]
	if !ok {
		c = &circuit{state: StateClosed, lastStateChange: b.now()}
		b.circuits[host] = c
	}
	return c
}
