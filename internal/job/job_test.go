package job

import (
	"context"
	"testing"
	"time"

	"tickrtos/internal/gpio"
	"tickrtos/internal/sched"
)

// startScheduler runs s in the background and stops it on cleanup.
func startScheduler(t *testing.T, s *sched.Scheduler) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func step(t *testing.T, ctx context.Context, s *sched.Scheduler, ticks int) {
	t.Helper()
	for i := 0; i < ticks; i++ {
		if err := s.WaitIdle(ctx); err != nil {
			t.Fatalf("WaitIdle before tick %d: %v", s.Now(), err)
		}
		s.Tick()
	}
	if err := s.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle at tick %d: %v", s.Now(), err)
	}
}

func TestBlinkTogglesEveryHalfPeriod(t *testing.T) {
	s := sched.New(sched.DefaultConfig())
	drv := gpio.NewMemoryDriver(func() uint32 { return uint32(s.Now()) })
	out, err := gpio.NewOutput(drv, 13)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if _, err := s.Spawn("LED Flash", Blink(out, 100), 512, 5, nil); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	ctx := startScheduler(t, s)
	step(t, ctx, s, 399)

	// one tick short of the fifth edge
	if got := len(drv.History()); got != 4 {
		t.Fatalf("expected 4 transitions by tick 399, got %d", got)
	}
	step(t, ctx, s, 1)

	want := []gpio.Transition{
		{Pin: 13, High: true, At: 0},
		{Pin: 13, High: false, At: 100},
		{Pin: 13, High: true, At: 200},
		{Pin: 13, High: false, At: 300},
		{Pin: 13, High: true, At: 400},
	}
	got := drv.History()
	if len(got) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSleepWorkFinishes(t *testing.T) {
	s := sched.New(sched.DefaultConfig())
	id, err := s.Spawn("sleeper", SleepWork(3, 2), 256, 1, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	ctx := startScheduler(t, s)
	step(t, ctx, s, 5)
	if len(s.Tasks()) != 1 {
		t.Fatalf("task %d finished early at tick %d", id, s.Now())
	}
	step(t, ctx, s, 1)
	if n := len(s.Tasks()); n != 0 {
		t.Fatalf("expected task table empty at tick 6, got %d tasks", n)
	}
}
