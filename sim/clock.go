// Package sim runs scripted fleet scenarios against the real control loop:
// simulated drivers, timed request arrivals and a stepped clock, with the
// haversine cost provider standing in for a road network.
package sim

import (
	"sync"
	"time"
)

// Clock is a stepped simulation clock. The runner advances it; everything
// else only reads.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock creates a clock starting at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
