// Package network implements the default Network collaborator (spec
// §6): fetch(url, kind, tab_context) -> FetchResult, built on a
// resilient resty/retryablehttp client the way the parent corpus builds
// its external HTTP client, including a circuit breaker over repeated
// failures.
package network

import (
	"fmt"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// ErrCircuitOpen is returned by Execute when the breaker is open.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

// Counts tracks request/failure totals within the current generation.
type Counts struct {
	Requests            int
	TotalFailures       int
	ConsecutiveFailures int
	ConsecutiveSuccesses int
}

func (c *Counts) onRequest() { c.Requests++ }

func (c *Counts) onSuccess() {
	c.ConsecutiveFailures = 0
	c.ConsecutiveSuccesses++
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Settings configures a Breaker.
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(Counts) bool
}

// Breaker is a minimal circuit breaker guarding the fetch path, in the
// style of the parent corpus's resilience.Breaker but scoped to this
// package so the Network collaborator has no dependency beyond what it
// actually exercises.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

// New builds a Breaker.
func New(name string, settings Settings) *Breaker {
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= 5 }
	}
	return &Breaker{name: name, settings: settings}
}

// State returns the current breaker state, advancing Open->HalfOpen when
// the timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.After(b.expiry) {
		b.state = StateHalfOpen
		b.counts = Counts{}
	}
	return b.state
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	b.mu.Lock()
	state := b.currentState(time.Now())
	if state == StateOpen {
		b.mu.Unlock()
		return nil, ErrCircuitOpen
	}
	b.counts.onRequest()
	b.mu.Unlock()

	result, err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.counts.onFailure()
		if b.settings.ReadyToTrip(b.counts) {
			b.state = StateOpen
			b.expiry = time.Now().Add(b.settings.Timeout)
		}
		return nil, err
	}
	b.counts.onSuccess()
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.counts = Counts{}
	}
	return result, nil
}

// Counts returns a copy of the current generation's counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}
