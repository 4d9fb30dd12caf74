package sched

import (
	"math"
	"testing"
	"time"
)

func TestDue(t *testing.T) {
	tests := []struct {
		name      string
		now, wake Tick
		want      bool
	}{
		{"before", 10, 11, false},
		{"at", 11, 11, true},
		{"after", 12, 11, true},
		{"wake past wrap, now before", math.MaxUint32 - 2, 2, false},
		{"wake past wrap, now at max", math.MaxUint32, 2, false},
		{"wake past wrap, now at wake", 2, 2, true},
		{"wake before wrap, now past", 1, math.MaxUint32, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Due(tt.now, tt.wake); got != tt.want {
				t.Errorf("Due(%d, %d) = %v, want %v", tt.now, tt.wake, got, tt.want)
			}
		})
	}
}

func TestAddTicksWrapsAndSaturates(t *testing.T) {
	if got := AddTicks(math.MaxUint32-2, 5); got != 2 {
		t.Errorf("AddTicks(MAX-2, 5) = %d, want 2", got)
	}
	if got := AddTicks(0, math.MaxUint32); got != Tick(MaxDelay) {
		t.Errorf("AddTicks(0, MaxUint32) = %d, want %d", got, MaxDelay)
	}
	// a saturated wake tick is still in the future
	now := Tick(math.MaxUint32 - 7)
	if Due(now, AddTicks(now, math.MaxUint32)) {
		t.Error("saturated delay reported due immediately")
	}
}

func TestElapsedAcrossWrap(t *testing.T) {
	if got := Elapsed(math.MaxUint32-2, 2); got != 5 {
		t.Errorf("Elapsed(MAX-2, 2) = %d, want 5", got)
	}
}

func TestCompareTicks(t *testing.T) {
	if compareTicks(math.MaxUint32, 1) != -1 {
		t.Error("MAX should sort before 1 once the counter wraps")
	}
	if compareTicks(1, math.MaxUint32) != 1 {
		t.Error("1 should sort after MAX once the counter wraps")
	}
	if compareTicks(7, 7) != 0 {
		t.Error("equal ticks should compare equal")
	}
}

func TestTicksFor(t *testing.T) {
	tests := []struct {
		d    time.Duration
		hz   int
		want uint32
	}{
		{time.Second, 100, 100},
		{10 * time.Millisecond, 100, 1},
		{15 * time.Millisecond, 100, 2},
		{time.Millisecond, 100, 1},
		{0, 100, 0},
		{time.Second, 0, 0},
		{90 * 24 * time.Hour, 1000, MaxDelay},
	}
	for _, tt := range tests {
		if got := TicksFor(tt.d, tt.hz); got != tt.want {
			t.Errorf("TicksFor(%v, %d) = %d, want %d", tt.d, tt.hz, got, tt.want)
		}
	}
}
