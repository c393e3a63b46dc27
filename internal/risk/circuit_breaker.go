package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

// CircuitConfig controls the optional consecutive-loss breaker. A zero
// MaxConsecutiveLosses disables it entirely.
type CircuitConfig struct {
	MaxConsecutiveLosses int
	CooldownPeriod       time.Duration
}

// CircuitBreaker trips after a run of losing trades and stays open until
// the cooldown elapses or Reset is called.
type CircuitBreaker struct {
	mu                sync.Mutex
	state             CircuitState
	config            CircuitConfig
	consecutiveLosses int
	lastTripped       time.Time
}

func NewCircuitBreaker(config CircuitConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:  CircuitClosed,
		config: config,
	}
}

func (cb *CircuitBreaker) RecordTrade(pnl decimal.Decimal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if pnl.IsNegative() {
		cb.consecutiveLosses++
	} else {
		cb.consecutiveLosses = 0
	}

	if cb.state == CircuitClosed &&
		cb.config.MaxConsecutiveLosses > 0 &&
		cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.state = CircuitOpen
		cb.lastTripped = time.Now()
	}
}

func (cb *CircuitBreaker) IsTripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		// Auto-reset once the cooldown window passes
		if cb.config.CooldownPeriod > 0 && time.Since(cb.lastTripped) > cb.config.CooldownPeriod {
			cb.state = CircuitClosed
			cb.consecutiveLosses = 0
			return false
		}
		return true
	}
	return false
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.consecutiveLosses = 0
}
