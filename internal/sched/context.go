package sched

import "runtime"

// TaskContext is a task's handle on the scheduler. It is bound to the task
// it was created for and must only be used from that task's body.
type TaskContext struct {
	s *Scheduler
	t *Task
}

func (tc *TaskContext) ID() TaskID   { return tc.t.ID }
func (tc *TaskContext) Name() string { return tc.t.Name }

// Arg returns the opaque argument passed to Spawn.
func (tc *TaskContext) Arg() any { return tc.t.arg }

// Now returns the current tick. It is also a checkpoint, so a task that
// polls the clock can be preempted.
func (tc *TaskContext) Now() Tick {
	tc.Checkpoint()
	return tc.s.Now()
}

// Stack returns the task's stack memory. The stack grows down from the end
// of the slice; the first GuardBytes bytes are the guard region.
func (tc *TaskContext) Stack() []byte { return tc.t.stack }

// Yield gives the CPU to the highest-priority ready task. Among equal
// priorities the caller goes to the back of the line. If no ready task is at
// or above the caller's priority, Yield returns without switching.
func (tc *TaskContext) Yield() error {
	s, t := tc.s, tc.t
	if err := s.enterTask(t, "yield"); err != nil {
		return err
	}
	if s.ready.top() < t.Priority {
		s.exitCritical()
		return nil
	}
	t.state = StateReady
	s.ready.push(t)
	s.events.put(t.event(StatusYield, s.Now()))
	s.switchOut(t)
	s.exitCritical()

	s.suspend(t)
	return nil
}

// Checkpoint is a preemption point. When a tick or an interrupt-side Give
// has flagged that a ready task should take over (a higher priority, or an
// equal one whose turn has come), the caller is switched out here and
// resumes once it is dispatched again. Task code that runs long stretches
// without calling Yield, Delay or Take should call Checkpoint regularly.
func (tc *TaskContext) Checkpoint() error {
	s, t := tc.s, tc.t
	s.enterCritical()
	if s.current != t {
		s.exitCritical()
		return nil
	}
	if s.halted || s.fatal != nil {
		s.exitCritical()
		s.park()
		return ErrHalted
	}
	if !s.needResched {
		s.exitCritical()
		return nil
	}
	s.needResched = false
	if s.ready.top() < t.Priority {
		s.exitCritical()
		return nil
	}
	s.stats.Preemptions++
	t.state = StateReady
	s.ready.push(t)
	s.events.put(t.event(StatusPreempt, s.Now()))
	s.switchOut(t)
	s.exitCritical()

	s.suspend(t)
	return nil
}

// Delay puts the task to sleep for ticks ticks; it resumes at or after
// Now()+ticks. Delays longer than MaxDelay are cut to MaxDelay. Delay(0)
// is a Yield.
func (tc *TaskContext) Delay(ticks uint32) error {
	if ticks == 0 {
		return tc.Yield()
	}
	s, t := tc.s, tc.t
	if err := s.enterTask(t, "delay"); err != nil {
		return err
	}
	now := s.Now()
	t.wake = AddTicks(now, ticks)
	t.state = StateSleeping
	s.seq++
	t.seq = s.seq
	s.sleeping.insert(t)
	s.events.put(t.event(StatusSleep, now))
	s.switchOut(t)
	s.exitCritical()

	s.suspend(t)
	return nil
}

// park ends the calling task goroutine once the scheduler has stopped.
// Deferred calls in the task body still run.
func (s *Scheduler) park() {
	runtime.Goexit()
}
