package util

import (
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock advances one millisecond per call, starting from a fixed epoch.
// Used for deterministic order timestamps in tests.
type ManualClock struct {
	base  int64 // unix milliseconds
	ticks atomic.Int64
}

func NewManualClock(base time.Time) *ManualClock {
	return &ManualClock{base: base.UnixMilli()}
}

func (c *ManualClock) Now() time.Time {
	t := c.ticks.Add(1)
	return time.UnixMilli(c.base + t - 1)
}
