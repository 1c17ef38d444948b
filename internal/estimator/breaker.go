package estimator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker trips after maxFailures consecutive upstream failures and stays open
// for the cooldown period. While open, callers skip the upstream call and use
// the estimate fallback directly. One probe request is let through once the
// cooldown elapses.
type breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	logger      *logrus.Logger

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func newBreaker(name string, maxFailures int, cooldown time.Duration, logger *logrus.Logger) *breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger,
	}
}

// Allow reports whether an upstream call may proceed.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed, stateHalfOpen:
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.transition(stateHalfOpen)
			return true
		}
		return false
	}
	return true
}

// Record feeds the outcome of an upstream call back into the breaker.
func (b *breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.failures = 0
		if b.state != stateClosed {
			b.transition(stateClosed)
		}
		return
	}

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = time.Now()
		if b.state != stateOpen {
			b.transition(stateOpen)
		}
	}
}

func (b *breaker) transition(to breakerState) {
	from := b.state
	b.state = to
	b.logger.WithFields(logrus.Fields{
		"breaker": b.name,
		"from":    from.String(),
		"to":      to.String(),
	}).Info("Estimator circuit breaker state change")
}
