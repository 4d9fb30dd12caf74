// internal/sched/tick.go

package sched

import (
	"math"
	"time"
)

// Tick is the value of the scheduler's tick counter. It wraps modulo 2^32,
// so ticks must only ever be compared through the helpers below.
type Tick uint32

// MaxDelay is the longest delay a task may request. Keeping every pending
// wake tick within half the counter range of "now" is what makes the
// modular comparisons below well defined.
const MaxDelay uint32 = math.MaxInt32

// AddTicks returns now+n, saturating n at MaxDelay and wrapping the sum.
func AddTicks(now Tick, n uint32) Tick {
	if n > MaxDelay {
		n = MaxDelay
	}
	return now + Tick(n)
}

// Due reports whether wake has been reached at now, across wraparound.
func Due(now, wake Tick) bool {
	return int32(now-wake) >= 0
}

// Elapsed returns the number of ticks from since to now.
func Elapsed(since, now Tick) uint32 {
	return uint32(now - since)
}

// compareTicks orders two ticks that lie within MaxDelay of each other.
func compareTicks(a, b Tick) int {
	d := int32(a - b)
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

// TicksFor converts a wall-clock duration to ticks at the given rate,
// rounding up so a delay never ends early.
func TicksFor(d time.Duration, hz int) uint32 {
	if d <= 0 || hz <= 0 {
		return 0
	}
	whole := int64(d/time.Second) * int64(hz)
	frac := (int64(d%time.Second)*int64(hz) + int64(time.Second) - 1) / int64(time.Second)
	n := whole + frac
	if whole/int64(hz) != int64(d/time.Second) || n > int64(MaxDelay) {
		return MaxDelay
	}
	return uint32(n)
}
