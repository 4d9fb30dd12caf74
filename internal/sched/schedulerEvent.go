// internal/sched/schedulerEvent.go

package sched

import (
	"github.com/emirpasic/gods/queues/circularbuffer"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusSpawn
	StatusDispatch
	StatusYield
	StatusSleep
	StatusWake
	StatusBlock
	StatusUnblock
	StatusFinish
	StatusFatal
	StatusPreempt
)

// StatusEvent is emitted on every state transition of a task.
type StatusEvent struct {
	Tick     Tick
	Kind     StatusKind
	TaskID   TaskID
	Name     string
	Priority int
	Wake     Tick // set for StatusSleep
	Err      error
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusSpawn:
		return "Spawn"
	case StatusDispatch:
		return "Dispatch"
	case StatusYield:
		return "Yield"
	case StatusSleep:
		return "Sleep"
	case StatusWake:
		return "Wake"
	case StatusBlock:
		return "Block"
	case StatusUnblock:
		return "Unblock"
	case StatusFinish:
		return "Finish"
	case StatusFatal:
		return "Fatal"
	case StatusPreempt:
		return "Preempt"
	default:
		return "Unknown"
	}
}

// Sink consumes scheduler events. Sinks run on the dispatcher goroutine,
// outside the critical section, and must not call back into the scheduler.
type Sink interface {
	Record(ev StatusEvent) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev StatusEvent) error

func (f SinkFunc) Record(ev StatusEvent) error { return f(ev) }

// eventRing buffers events raised inside critical sections. When it is full
// the oldest event is overwritten and counted as dropped.
type eventRing struct {
	buf     *circularbuffer.Queue
	dropped uint64
}

func newEventRing(size int) *eventRing {
	return &eventRing{buf: circularbuffer.New(size)}
}

func (r *eventRing) put(ev StatusEvent) {
	if r.buf.Full() {
		r.dropped++
	}
	r.buf.Enqueue(ev)
}

// drain empties the ring into a slice.
func (r *eventRing) drain() []StatusEvent {
	if r.buf.Empty() {
		return nil
	}
	out := make([]StatusEvent, 0, r.buf.Size())
	for {
		v, ok := r.buf.Dequeue()
		if !ok {
			return out
		}
		out = append(out, v.(StatusEvent))
	}
}

func (t *Task) event(kind StatusKind, now Tick) StatusEvent {
	return StatusEvent{
		Tick:     now,
		Kind:     kind,
		TaskID:   t.ID,
		Name:     t.Name,
		Priority: t.Priority,
		Wake:     t.wake,
	}
}
