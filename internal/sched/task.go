package sched

// TaskID uniquely identifies a task in the scheduler. IDs start at 1 and are
// never reused, so a stale handle can't name a recycled slot.
type TaskID uint32

// TaskState is the scheduling state of a task.
type TaskState int

const (
	StateReady TaskState = iota
	StateRunning
	StateSleeping
	StateBlocked
	StateTerminated
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateBlocked:
		return "Blocked"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// EntryFunc is a task body. It receives the task's own context, through
// which it reaches its argument and the scheduling operations.
type EntryFunc func(tc *TaskContext)

// stackFill is written over a fresh stack; the guard region must keep it.
const stackFill = 0xa5

// cpuContext is the register snapshot kept while a task is off the CPU.
type cpuContext struct {
	restores uint64 // times this context was switched in
	saved    bool   // true whenever the task is not running
}

// Task represents one schedulable task unit.
type Task struct {
	ID       TaskID
	Name     string
	Priority int // 0 .. MaxPriorities-1, higher runs first

	state TaskState
	wake  Tick   // valid only while sleeping
	seq   uint64 // insertion order for sleep/wait queue ties
	slot  int
	ctx   cpuContext
	stack []byte
	guard int

	entry   EntryFunc
	arg     any
	started bool
	resume  chan struct{}
}

func newTask(id TaskID, name string, priority int, stack []byte, guard int, entry EntryFunc, arg any) *Task {
	for i := range stack {
		stack[i] = stackFill
	}
	return &Task{
		ID:       id,
		Name:     name,
		Priority: priority,
		state:    StateReady,
		ctx:      cpuContext{saved: true},
		stack:    stack,
		guard:    guard,
		entry:    entry,
		arg:      arg,
		resume:   make(chan struct{}),
	}
}

// guardIntact reports whether the low guard bytes still hold the fill
// pattern. Stacks grow down, so an overflow reaches the guard first.
func (t *Task) guardIntact() bool {
	for _, b := range t.stack[:t.guard] {
		if b != stackFill {
			return false
		}
	}
	return true
}

// highWater returns how many bytes of stack have never been touched.
func (t *Task) highWater() int {
	n := 0
	for _, b := range t.stack {
		if b != stackFill {
			break
		}
		n++
	}
	return n
}

// TaskInfo is a point-in-time copy of a task's record.
type TaskInfo struct {
	ID        TaskID
	Name      string
	Priority  int
	State     TaskState
	Wake      Tick
	StackSize int
	StackFree int
	Restores  uint64
}

func (t *Task) info() TaskInfo {
	return TaskInfo{
		ID:        t.ID,
		Name:      t.Name,
		Priority:  t.Priority,
		State:     t.state,
		Wake:      t.wake,
		StackSize: len(t.stack),
		StackFree: t.highWater(),
		Restores:  t.ctx.restores,
	}
}
