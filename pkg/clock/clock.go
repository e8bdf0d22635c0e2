package clock

import (
	"context"
	"time"

	internalclock "github.com/SmitUplenchwar2687/rhythm/internal/clock"
)

// Clock abstracts time so replays run against real or virtual time.
type Clock = internalclock.Clock

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a controllable clock for deterministic replays.
type VirtualClock = internalclock.VirtualClock

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}

// NewInstantClock creates a virtual clock that advances itself whenever a
// waiter asks for a future time, so schedules run without real waiting.
func NewInstantClock(start time.Time) *VirtualClock {
	return internalclock.NewInstantClock(start)
}

// Sleep waits d on c or until ctx is done.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	return internalclock.Sleep(ctx, c, d)
}
