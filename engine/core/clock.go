package core

import "time"

// Clock steps the frame loop: call Update once per frame and read Delta
// for the elapsed step. A clock that was never started does nothing.
type Clock struct {
	start time.Time
	last  time.Time
	delta float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Start resets the clock and begins measuring.
func (c *Clock) Start() {
	now := time.Now()
	c.start = now
	c.last = now
	c.delta = 0
}

// Update advances the clock by one frame step.
func (c *Clock) Update() {
	if c.start.IsZero() {
		return
	}
	now := time.Now()
	c.delta = now.Sub(c.last).Seconds()
	c.last = now
}

// Delta is the seconds between the two most recent Updates.
func (c *Clock) Delta() float64 {
	return c.delta
}

// Elapsed is the seconds since Start.
func (c *Clock) Elapsed() float64 {
	if c.start.IsZero() {
		return 0
	}
	return time.Since(c.start).Seconds()
}
