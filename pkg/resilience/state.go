package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State is the position of a CircuitBreaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota

	// StateHalfOpen lets calls through to probe recovery.
	StateHalfOpen

	// StateOpen rejects calls until Timeout has passed.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Stats is a snapshot of a CircuitBreaker.
type Stats struct {
	State             State
	Generation        uint64
	Counts            Counts
	RunningCalls      uint32
	MaxRunningCalls   uint32
	LastStateChange   time.Time
	StateChanges      map[State]int
	TimeUntilHalfOpen time.Duration
}

type circuit struct {
	mu              sync.RWMutex
	config          Config
	state           State
	generation      uint64
	counts          Counts
	expiry          time.Time
	runningCalls    uint32
	maxRunningCalls uint32
	lastStateChange time.Time
	stateChanges    map[State]int
}

func newCircuit(config Config) *circuit {
	return &circuit{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
		stateChanges:    make(map[State]int),
	}
}

// transition moves to next and starts a new generation. Callers hold mu.
// Results of calls started in an older generation are ignored.
func (c *circuit) transition(next State) {
	prev := c.state
	c.state = next
	c.generation++
	c.counts = Counts{}
	c.lastStateChange = time.Now()
	c.stateChanges[next]++

	if next == StateOpen {
		c.expiry = time.Now().Add(c.config.Timeout)
	}
	if c.config.OnStateChange != nil {
		go c.config.OnStateChange(c.config.Name, prev, next)
	}
}

func (c *circuit) admit() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen && time.Now().After(c.expiry) {
		c.transition(StateHalfOpen)
	}
	if c.state == StateOpen {
		return c.generation, ErrCircuitOpen
	}
	if c.config.MaxConcurrentCalls > 0 && c.runningCalls >= c.config.MaxConcurrentCalls {
		return c.generation, ErrTooManyCalls
	}

	c.runningCalls++
	c.maxRunningCalls = max(c.maxRunningCalls, c.runningCalls)
	return c.generation, nil
}

func (c *circuit) settle(generation uint64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runningCalls > 0 {
		c.runningCalls--
	}
	if generation != c.generation {
		return
	}

	c.counts.Requests++
	if success {
		c.counts.TotalSuccesses++
		c.counts.ConsecutiveSuccesses++
		c.counts.ConsecutiveFailures = 0
		if c.state == StateHalfOpen && c.counts.ConsecutiveSuccesses >= c.config.SuccessThreshold {
			c.transition(StateClosed)
		}
		return
	}

	c.counts.TotalFailures++
	c.counts.ConsecutiveFailures++
	c.counts.ConsecutiveSuccesses = 0
	switch {
	case c.state == StateHalfOpen:
		c.transition(StateOpen)
	case c.state == StateClosed && c.shouldTrip():
		c.transition(StateOpen)
	}
}

func (c *circuit) shouldTrip() bool {
	if c.config.ShouldTrip != nil {
		return c.config.ShouldTrip(c.counts)
	}
	return c.counts.ConsecutiveFailures >= c.config.MaxFailures
}

func (c *circuit) position() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *circuit) snapshot() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts
}

func (c *circuit) stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	changes := make(map[State]int, len(c.stateChanges))
	for k, v := range c.stateChanges {
		changes[k] = v
	}

	var untilHalfOpen time.Duration
	if c.state == StateOpen {
		untilHalfOpen = max(time.Until(c.expiry), 0)
	}

	return Stats{
		State:             c.state,
		Generation:        c.generation,
		Counts:            c.counts,
		RunningCalls:      c.runningCalls,
		MaxRunningCalls:   c.maxRunningCalls,
		LastStateChange:   c.lastStateChange,
		StateChanges:      changes,
		TimeUntilHalfOpen: untilHalfOpen,
	}
}

func (c *circuit) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	c.generation++
	c.counts = Counts{}
	c.expiry = time.Time{}
	c.lastStateChange = time.Now()
}
