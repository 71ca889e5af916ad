// Package progress interpolates a song's elapsed time between server updates.
package progress

import (
	"math"
	"time"
)

// Cursor is the local elapsed-time counter of one station. A zero duration
// marks a live broadcast: elapsed is then never clamped.
type Cursor struct {
	Elapsed    float64
	Duration   float64
	LastUpdate time.Time
}

// Reset rebases the cursor on values reported by the server
func (c *Cursor) Reset(elapsed, duration float64, now time.Time) {
	c.Elapsed = elapsed
	c.Duration = duration
	c.LastUpdate = now
}

// Advance adds the wall-clock time since the last adjustment. It returns true
// when a fixed-length song has reached its end; elapsed is then pinned to the
// duration.
func (c *Cursor) Advance(now time.Time) bool {
	if delta := now.Sub(c.LastUpdate).Seconds(); delta > 0 {
		// kept fractional, rounding each tick would drift over a long song
		c.Elapsed += delta
	}
	c.LastUpdate = now

	if c.Duration > 0 && c.Elapsed >= c.Duration {
		c.Elapsed = c.Duration
		return true
	}
	return false
}

// Percent is the displayed progress width. Live streams divide by zero;
// any non-finite or overflowing ratio is shown as 100.
func (c *Cursor) Percent() float64 {
	p := c.Elapsed / c.Duration * 100
	if math.IsNaN(p) || math.IsInf(p, 0) || p > 100 {
		return 100
	}
	return p
}
