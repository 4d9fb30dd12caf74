package sched

import (
	"github.com/emirpasic/gods/queues/priorityqueue"
)

// Semaphore is a counting semaphore. Takers block when the count is zero and
// are released highest priority first, FIFO among equals.
type Semaphore struct {
	s       *Scheduler
	count   int
	max     int
	waiters *priorityqueue.Queue
}

// waiterCmp orders waiters by descending priority, then by arrival.
func waiterCmp(a, b any) int {
	ta, tb := a.(*Task), b.(*Task)
	switch {
	case ta.Priority > tb.Priority:
		return -1
	case ta.Priority < tb.Priority:
		return 1
	case ta.seq < tb.seq:
		return -1
	case ta.seq > tb.seq:
		return 1
	default:
		return 0
	}
}

// NewSemaphore creates a semaphore with the given initial count and maximum.
// A maximum of 1 gives a binary semaphore.
func (s *Scheduler) NewSemaphore(initial, maxCount int) *Semaphore {
	if maxCount < 1 {
		maxCount = 1
	}
	if initial < 0 {
		initial = 0
	} else if initial > maxCount {
		initial = maxCount
	}
	return &Semaphore{
		s:       s,
		count:   initial,
		max:     maxCount,
		waiters: priorityqueue.NewWith(waiterCmp),
	}
}

// Take decrements the count, blocking the calling task while it is zero.
func (m *Semaphore) Take(tc *TaskContext) error {
	s, t := m.s, tc.t
	if err := s.enterTask(t, "take"); err != nil {
		return err
	}
	if m.count > 0 {
		m.count--
		s.exitCritical()
		return nil
	}
	t.state = StateBlocked
	s.seq++
	t.seq = s.seq
	m.waiters.Enqueue(t)
	s.blocked.add(t)
	s.events.put(t.event(StatusBlock, s.Now()))
	s.switchOut(t)
	s.exitCritical()

	s.suspend(t)
	return nil
}

// Give releases one waiter or, with none waiting, increments the count up to
// its maximum. tc is the calling task, or nil when called from outside any
// task (like an interrupt handler). A task that releases a higher-priority
// waiter yields to it straight away.
func (m *Semaphore) Give(tc *TaskContext) error {
	s := m.s
	if tc != nil {
		if err := s.enterTask(tc.t, "give"); err != nil {
			return err
		}
	} else {
		s.enterCritical()
	}
	v, ok := m.waiters.Dequeue()
	if !ok {
		if m.count < m.max {
			m.count++
		}
		s.exitCritical()
		return nil
	}
	t := v.(*Task)
	s.blocked.remove(t)
	t.state = StateReady
	s.ready.push(t)
	s.events.put(t.event(StatusUnblock, s.Now()))
	preempt := tc != nil && t.Priority > tc.t.Priority
	if tc == nil {
		s.pendLocked(false)
	}
	s.exitCritical()

	s.wakeDispatcher()
	if preempt {
		return tc.Yield()
	}
	return nil
}

// Count returns the current count.
func (m *Semaphore) Count() int {
	m.s.enterCritical()
	defer m.s.exitCritical()
	return m.count
}
