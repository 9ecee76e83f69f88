package astral

import "time"

// FrameClock tracks wall time across rendered frames. Elapsed feeds
// animated shader constants; Dt is the previous frame's duration for
// host-side animation.
type FrameClock struct {
	start time.Time
	last  time.Time
	dt    time.Duration
}

func NewFrameClock() *FrameClock {
	now := time.Now()
	return &FrameClock{start: now, last: now}
}

// Tick advances the clock one frame. Call once per frame, before
// recording.
func (c *FrameClock) Tick() {
	now := time.Now()
	c.dt = now.Sub(c.last)
	c.last = now
}

func (c *FrameClock) Dt() time.Duration {
	return c.dt
}

// Elapsed is the time since the clock started, in the seconds-as-float
// form shader constants carry.
func (c *FrameClock) Elapsed() float32 {
	return float32(c.last.Sub(c.start).Seconds())
}
