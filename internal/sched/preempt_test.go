package sched

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds, failing the test after a few seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func TestSpinningTaskIsPreempted(t *testing.T) {
	tests := []struct {
		name string
		// urgent blocks until wake makes it ready again
		urgent func(tc *TaskContext, sem *Semaphore) error
		wake   func(s *Scheduler, sem *Semaphore)
	}{
		{
			name:   "tick wakes sleeper",
			urgent: func(tc *TaskContext, _ *Semaphore) error { return tc.Delay(1) },
			wake:   func(s *Scheduler, _ *Semaphore) { s.Tick() },
		},
		{
			name:   "interrupt gives semaphore",
			urgent: func(tc *TaskContext, sem *Semaphore) error { return sem.Take(tc) },
			wake:   func(_ *Scheduler, sem *Semaphore) { sem.Give(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			sem := h.s.NewSemaphore(0, 1)
			var spins atomic.Int64
			var stop atomic.Bool
			seen := make(chan int64, 1)

			h.spawn("urgent", 5, func(tc *TaskContext) {
				if tt.urgent(tc, sem) != nil {
					return
				}
				seen <- spins.Load()
				stop.Store(true)
			})
			h.spawn("spinner", 1, func(tc *TaskContext) {
				for !stop.Load() {
					spins.Add(1)
					tc.Now()
				}
			})

			h.start()
			waitFor(t, "spinner to run", func() bool { return spins.Load() > 100 })

			tt.wake(h.s, sem)
			after := spins.Load()
			select {
			case at := <-seen:
				// the spinner may finish the iteration it was in
				if at > after+1 {
					t.Fatalf("spinner ran %d iterations with a priority-5 task ready", at-after)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("ready priority-5 task never got the CPU")
			}
			if p := h.s.Stats().Preemptions; p != 1 {
				t.Errorf("Preemptions = %d, want 1", p)
			}
		})
	}
}

func TestTickKeepsHigherPriorityRunning(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var stop atomic.Bool
	var lowRan atomic.Bool
	var spins atomic.Int64

	h.spawn("low", 1, func(tc *TaskContext) { lowRan.Store(true) })
	h.spawn("busy", 4, func(tc *TaskContext) {
		for !stop.Load() {
			spins.Add(1)
			tc.Checkpoint()
		}
	})

	h.start()
	waitFor(t, "busy task to run", func() bool { return spins.Load() > 100 })
	h.s.Tick()
	before := spins.Load()
	waitFor(t, "busy task to keep running", func() bool { return spins.Load() > before+100 })
	if lowRan.Load() {
		t.Fatal("priority-1 task ran while a priority-4 task was running")
	}
	stop.Store(true)
	h.idle()
	if !lowRan.Load() {
		t.Error("priority-1 task never ran after the busy task finished")
	}
	if p := h.s.Stats().Preemptions; p != 0 {
		t.Errorf("Preemptions = %d, want 0", p)
	}
}

// TestTickRoundRobinsEqualPriority runs three compute-bound tasks at one
// priority and checks each tick hands the CPU to the next in turn.
func TestTickRoundRobinsEqualPriority(t *testing.T) {
	const rounds = 4
	h := newHarness(t, DefaultConfig())

	var mu sync.Mutex
	var slots []string
	var stop atomic.Bool
	for _, name := range []string{"a", "b", "c"} {
		name := name
		h.spawn(name, 2, func(tc *TaskContext) {
			for !stop.Load() {
				mu.Lock()
				if len(slots) == 0 || slots[len(slots)-1] != name {
					slots = append(slots, name)
				}
				mu.Unlock()
				tc.Checkpoint()
			}
		})
	}
	slotCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(slots)
	}

	h.start()
	waitFor(t, "first slot", func() bool { return slotCount() == 1 })
	for i := 1; i <= 3*rounds; i++ {
		h.s.Tick()
		waitFor(t, fmt.Sprintf("slot after tick %d", i), func() bool { return slotCount() == i+1 })
	}
	stop.Store(true)
	h.idle()

	mu.Lock()
	defer mu.Unlock()
	per := map[string]int{}
	for i, name := range slots {
		if want := string("abc"[i%3]); name != want {
			t.Fatalf("slot %d ran %s, want %s (slots %v)", i, name, want, slots)
		}
		per[name]++
	}
	for _, name := range []string{"a", "b", "c"} {
		if per[name] < rounds {
			t.Errorf("task %s got %d slots over %d ticks, want at least %d", name, per[name], 3*rounds, rounds)
		}
	}
	if p := h.s.Stats().Preemptions; p != 3*rounds {
		t.Errorf("Preemptions = %d, want %d", p, 3*rounds)
	}
}
