// internal/sched/scheduler.go

package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Scheduler is a tick-driven, strictly prioritized task scheduler. Exactly
// one task runs at a time; equal priorities share the CPU round-robin.
//
// Task bodies run on their own goroutines, but only the goroutine holding
// the CPU executes task code. A context switch hands the CPU back to the
// dispatcher loop in Start, which picks the next task and resumes it.
type Scheduler struct {
	// mu is the critical section. It is held wherever firmware would mask
	// the timer interrupt: every queue, table and counter mutation.
	mu sync.Mutex

	cfg    Config
	logger *slog.Logger
	clock  *TickClock
	sinks  []Sink
	hook   func(now Tick)

	tick      atomic.Uint32
	table     []*Task // fixed-size task table
	nextID    TaskID
	seq       uint64
	stackUsed int
	ready     *readyQueue
	sleeping  *sleepQueue
	blocked   *blockedSet
	current   *Task
	events    *eventRing

	// needResched asks the running task to give up the CPU at its next
	// checkpoint.
	needResched bool
	stats     Stats

	started bool
	halted  bool
	fatal   error

	idleSig  chan struct{} // closed and replaced each time the dispatcher idles
	kick     chan struct{} // wakes an idle dispatcher
	handback chan struct{} // running task gives the CPU back
	halt     chan struct{}
	haltOnce sync.Once
	stopped  chan struct{}
}

// Stats are cumulative scheduler counters.
type Stats struct {
	Ticks         uint64
	Switches      uint64
	Wakeups       uint64
	Preemptions   uint64 // switches forced at a checkpoint
	DroppedEvents uint64
	Tasks         int
	StackUsed     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock attaches a timer interrupt source, started by Start at the
// configured tick rate. Without a clock, ticks come only from Tick calls.
func WithClock(c *TickClock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSink adds an event consumer.
func WithSink(sk Sink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sk) }
}

// WithTickHook installs a function called on every tick after sleepers are
// woken. It runs inside the critical section and must not call back into
// the scheduler.
func WithTickHook(fn func(now Tick)) Option {
	return func(s *Scheduler) { s.hook = fn }
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg = cfg.normalize()
	s := &Scheduler{
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		table:    make([]*Task, cfg.MaxTasks),
		ready:    newReadyQueue(cfg.MaxPriorities),
		sleeping: newSleepQueue(),
		blocked:  newBlockedSet(),
		events:   newEventRing(cfg.EventBuffer),
		idleSig:  make(chan struct{}),
		kick:     make(chan struct{}, 1),
		handback: make(chan struct{}),
		halt:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	s.tick.Store(cfg.StartTick)
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "sched")
	return s
}

func (s *Scheduler) enterCritical() { s.mu.Lock() }
func (s *Scheduler) exitCritical()  { s.mu.Unlock() }

// Config returns the normalized configuration in use.
func (s *Scheduler) Config() Config { return s.cfg }

// Now returns the current tick.
func (s *Scheduler) Now() Tick { return Tick(s.tick.Load()) }

// Spawn creates a task and makes it ready. The priority is clamped into the
// configured range and the stack size raised to the configured minimum.
// Spawn fails with ErrResourceExhausted when the task table or the stack
// pool is full; tasks already running are not affected.
func (s *Scheduler) Spawn(name string, entry EntryFunc, stackBytes, priority int, arg any) (TaskID, error) {
	if entry == nil {
		return 0, fmt.Errorf("spawn %q: nil entry function", name)
	}
	if priority < 0 {
		priority = 0
	} else if priority >= s.cfg.MaxPriorities {
		priority = s.cfg.MaxPriorities - 1
	}
	if stackBytes < s.cfg.MinStackBytes {
		stackBytes = s.cfg.MinStackBytes
	}

	s.enterCritical()
	if s.halted || s.fatal != nil {
		s.exitCritical()
		return 0, fmt.Errorf("spawn %q: %w", name, ErrHalted)
	}
	slot := -1
	for i, t := range s.table {
		if t == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		s.exitCritical()
		return 0, fmt.Errorf("spawn %q: task table full (%d slots): %w", name, len(s.table), ErrResourceExhausted)
	}
	if stackBytes > s.cfg.StackPoolBytes-s.stackUsed {
		free := s.cfg.StackPoolBytes - s.stackUsed
		s.exitCritical()
		return 0, fmt.Errorf("spawn %q: %d stack bytes requested, %d free: %w", name, stackBytes, free, ErrResourceExhausted)
	}

	s.nextID++
	t := newTask(s.nextID, name, priority, make([]byte, stackBytes), s.cfg.GuardBytes, entry, arg)
	t.slot = slot
	s.table[slot] = t
	s.stackUsed += stackBytes
	s.ready.push(t)
	s.events.put(t.event(StatusSpawn, s.Now()))
	s.pendLocked(false)
	s.exitCritical()

	s.logger.Info("task spawned", "task", t.ID, "name", name, "priority", priority, "stack", stackBytes)
	s.wakeDispatcher()
	return t.ID, nil
}

// Start runs the dispatcher loop. It returns only when the system halts:
// the fatal error that stopped it, nil after Halt, or ctx.Err() when the
// context ends. A scheduler can be started once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.enterCritical()
	if s.started {
		s.exitCritical()
		return fmt.Errorf("start: already started: %w", ErrInvalidState)
	}
	s.started = true
	s.exitCritical()

	if s.clock != nil {
		s.clock.Start(s.cfg.TickPeriod())
		go func() {
			for range s.clock.Ch {
				s.Tick()
			}
		}()
	}

	s.logger.Info("scheduler started", "tick_hz", s.cfg.TickHz, "tick", s.Now())
	err := s.dispatch(ctx)
	s.shutdown(err)
	return err
}

// Halt stops the scheduler; Start returns nil.
func (s *Scheduler) Halt() {
	s.haltOnce.Do(func() { close(s.halt) })
}

// dispatch is the scheduler context: it selects the next task, switches it
// in and waits for it to give the CPU back.
func (s *Scheduler) dispatch(ctx context.Context) error {
	idle := false
	for {
		s.flush()
		select {
		case <-s.halt:
			return s.fatalErr()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.enterCritical()
		next := s.ready.pop()
		if next == nil && !idle {
			idle = true
			s.events.put(StatusEvent{Tick: s.Now(), Kind: StatusIdle})
			s.exitCritical()
			s.flush()
			continue
		}
		if next == nil {
			close(s.idleSig)
			s.idleSig = make(chan struct{})
			s.exitCritical()

			select {
			case <-s.kick:
			case <-s.halt:
			case <-ctx.Done():
			}
			continue
		}
		idle = false
		s.switchIn(next)
		s.exitCritical()

		if !next.started {
			next.started = true
			go s.run(next)
		}
		select {
		case next.resume <- struct{}{}:
		case <-s.halt:
			continue
		case <-ctx.Done():
			continue
		}
		select {
		case <-s.handback:
		case <-s.halt:
		case <-ctx.Done():
		}
	}
}

// switchIn restores t's context and makes it the running task.
func (s *Scheduler) switchIn(t *Task) {
	t.state = StateRunning
	t.ctx.saved = false
	t.ctx.restores++
	s.current = t
	s.needResched = false
	s.stats.Switches++
	s.events.put(t.event(StatusDispatch, s.Now()))
}

// switchOut saves the running task's context and checks its stack guard.
// The caller has already moved t to its next state and queue.
func (s *Scheduler) switchOut(t *Task) {
	t.ctx.saved = true
	s.current = nil
	if !t.guardIntact() {
		s.failLocked(t.ID, fmt.Errorf("task %q overwrote its stack guard: %w", t.Name, ErrStackOverflow))
	}
}

// run is the body of a task goroutine.
func (s *Scheduler) run(t *Task) {
	select {
	case <-t.resume:
	case <-s.stopped:
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.enterCritical()
			s.failLocked(t.ID, fmt.Errorf("task %q panicked: %v", t.Name, r))
			s.exitCritical()
		}
		s.terminate(t)
	}()
	t.entry(&TaskContext{s: s, t: t})
}

// terminate retires a task whose entry function returned and recycles its
// slot and stack bytes.
func (s *Scheduler) terminate(t *Task) {
	s.enterCritical()
	if s.halted {
		// parked by shutdown; the table keeps its last state
		s.exitCritical()
		return
	}
	wasRunning := s.current == t
	t.state = StateTerminated
	if wasRunning {
		s.switchOut(t)
	}
	s.table[t.slot] = nil
	s.stackUsed -= len(t.stack)
	s.events.put(t.event(StatusFinish, s.Now()))
	s.exitCritical()

	if wasRunning {
		select {
		case s.handback <- struct{}{}:
		case <-s.stopped:
		}
	}
}

// enterTask enters the critical section on behalf of t, which must be the
// running task. On success the critical section is held. A task that calls
// in after the scheduler halted is parked for good.
func (s *Scheduler) enterTask(t *Task, op string) error {
	s.enterCritical()
	if s.halted || s.fatal != nil {
		mine := s.current == t
		s.exitCritical()
		if mine {
			s.park()
		}
		return fmt.Errorf("%s: %w", op, ErrHalted)
	}
	if s.current != t {
		err := fmt.Errorf("%s from task %q while %s: %w", op, t.Name, t.state, ErrInvalidState)
		s.failLocked(t.ID, err)
		err = s.fatal
		s.exitCritical()
		return err
	}
	return nil
}

// suspend hands the CPU back to the dispatcher and waits to be resumed.
// Called outside the critical section after switchOut.
func (s *Scheduler) suspend(t *Task) {
	select {
	case s.handback <- struct{}{}:
	case <-s.stopped:
		s.park()
	}
	select {
	case <-t.resume:
	case <-s.stopped:
		s.park()
	}
}

// Tick is the timer interrupt routine: it advances the counter by one,
// readies every sleeper that is due and wakes the dispatcher.
func (s *Scheduler) Tick() {
	s.enterCritical()
	if s.halted {
		s.exitCritical()
		return
	}
	now := Tick(s.tick.Add(1))
	s.stats.Ticks++

	woke := false
	for {
		t := s.sleeping.popDue(now)
		if t == nil {
			break
		}
		t.state = StateReady
		s.ready.push(t)
		s.stats.Wakeups++
		s.events.put(t.event(StatusWake, now))
		woke = true
	}
	s.pendLocked(true)
	if s.cfg.CheckInvariants {
		if err := s.verifyLocked(); err != nil {
			s.failLocked(0, err)
		}
	}
	if s.hook != nil {
		s.hook(now)
	}
	s.exitCritical()

	if woke {
		s.wakeDispatcher()
	}
}

// pendLocked flags a switch at the running task's next checkpoint when a
// ready task outranks it or, with roundRobin, shares its priority.
func (s *Scheduler) pendLocked(roundRobin bool) {
	c := s.current
	if c == nil {
		return
	}
	top := s.ready.top()
	if top > c.Priority || (roundRobin && top == c.Priority) {
		s.needResched = true
	}
}

func (s *Scheduler) wakeDispatcher() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// WaitIdle blocks until no task is ready or running, i.e. every task is
// sleeping, blocked or gone.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.enterCritical()
		idle := s.current == nil && s.ready.empty()
		sig := s.idleSig
		fatal, halted := s.fatal, s.halted
		s.exitCritical()

		switch {
		case fatal != nil:
			return fatal
		case idle:
			return nil
		case halted:
			return ErrHalted
		}
		select {
		case <-sig:
		case <-s.halt:
			s.enterCritical()
			fatal = s.fatal
			s.exitCritical()
			if fatal != nil {
				return fatal
			}
			return ErrHalted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.enterCritical()
	defer s.exitCritical()
	st := s.stats
	st.DroppedEvents = s.events.dropped
	st.StackUsed = s.stackUsed
	for _, t := range s.table {
		if t != nil {
			st.Tasks++
		}
	}
	return st
}

// Tasks returns a snapshot of the task table ordered by ID.
func (s *Scheduler) Tasks() []TaskInfo {
	s.enterCritical()
	var out []TaskInfo
	for _, t := range s.table {
		if t != nil {
			out = append(out, t.info())
		}
	}
	s.exitCritical()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// failLocked records the first fatal error and halts the dispatcher.
func (s *Scheduler) failLocked(id TaskID, err error) {
	if s.fatal != nil {
		return
	}
	now := s.Now()
	fe := &FatalError{Task: id, Tick: now, Err: err}
	s.fatal = fe
	s.events.put(StatusEvent{Tick: now, Kind: StatusFatal, TaskID: id, Err: fe})
	s.Halt()
}

func (s *Scheduler) fatalErr() error {
	s.enterCritical()
	defer s.exitCritical()
	return s.fatal
}

func (s *Scheduler) shutdown(err error) {
	if s.clock != nil {
		s.clock.Stop()
	}
	s.enterCritical()
	s.halted = true
	close(s.stopped)
	s.exitCritical()
	s.Halt()
	s.flush()

	if err != nil {
		s.logger.Error("scheduler halted", "tick", s.Now(), "error", err)
		return
	}
	s.logger.Info("scheduler halted", "tick", s.Now())
}

// flush delivers buffered events to the logger and sinks. Only the
// dispatcher goroutine calls it.
func (s *Scheduler) flush() {
	s.enterCritical()
	evs := s.events.drain()
	s.exitCritical()

	for _, ev := range evs {
		if ev.Kind == StatusFatal {
			s.logger.Error("fatal", "tick", ev.Tick, "task", ev.TaskID, "error", ev.Err)
		} else {
			s.logger.Debug(ev.Kind.String(), "tick", ev.Tick, "task", ev.TaskID, "name", ev.Name, "priority", ev.Priority)
		}
		for _, sk := range s.sinks {
			if err := sk.Record(ev); err != nil {
				s.logger.Warn("event sink failed", "error", err)
			}
		}
	}
}

// verifyLocked checks the queue and context invariants: a live task sits in
// exactly the queue its state names, at most one task runs, and every task
// that is not running has a saved context.
func (s *Scheduler) verifyLocked() error {
	where := make(map[*Task]TaskState)
	var err error
	mark := func(state TaskState) func(*Task) {
		return func(t *Task) {
			if prev, dup := where[t]; dup && err == nil {
				err = fmt.Errorf("task %d queued as both %s and %s", t.ID, prev, state)
			}
			where[t] = state
		}
	}
	s.ready.each(mark(StateReady))
	s.sleeping.each(mark(StateSleeping))
	s.blocked.each(mark(StateBlocked))
	if err != nil {
		return err
	}

	running := 0
	for _, t := range s.table {
		if t == nil {
			continue
		}
		if t.state == StateRunning {
			running++
			if t != s.current {
				return fmt.Errorf("task %d running but not current", t.ID)
			}
			if t.ctx.saved {
				return fmt.Errorf("task %d running with a saved context", t.ID)
			}
			if _, queued := where[t]; queued {
				return fmt.Errorf("task %d running while queued", t.ID)
			}
			continue
		}
		if !t.ctx.saved {
			return fmt.Errorf("task %d is %s without a saved context", t.ID, t.state)
		}
		if q, ok := where[t]; !ok || q != t.state {
			return fmt.Errorf("task %d is %s but not in that queue", t.ID, t.state)
		}
	}
	if running > 1 {
		return fmt.Errorf("%d tasks running", running)
	}
	if s.current != nil && s.current.state != StateRunning {
		return fmt.Errorf("current task %d is %s", s.current.ID, s.current.state)
	}
	return nil
}
