package sched

import (
	"math/bits"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/trees/redblacktree"
)

// readyQueue keeps one FIFO per priority level and a bitmap of the levels
// that are non-empty, so the highest ready priority is a single bit scan.
type readyQueue struct {
	levels []*linkedlistqueue.Queue
	mask   uint32
}

func newReadyQueue(priorities int) *readyQueue {
	rq := &readyQueue{levels: make([]*linkedlistqueue.Queue, priorities)}
	for i := range rq.levels {
		rq.levels[i] = linkedlistqueue.New()
	}
	return rq
}

// push appends t at the tail of its priority level.
func (rq *readyQueue) push(t *Task) {
	rq.levels[t.Priority].Enqueue(t)
	rq.mask |= 1 << uint(t.Priority)
}

// top returns the highest non-empty priority, or -1.
func (rq *readyQueue) top() int {
	return bits.Len32(rq.mask) - 1
}

// pop removes the head of the highest non-empty level.
func (rq *readyQueue) pop() *Task {
	p := rq.top()
	if p < 0 {
		return nil
	}
	q := rq.levels[p]
	v, _ := q.Dequeue()
	if q.Empty() {
		rq.mask &^= 1 << uint(p)
	}
	return v.(*Task)
}

func (rq *readyQueue) empty() bool { return rq.mask == 0 }

func (rq *readyQueue) each(fn func(*Task)) {
	for _, q := range rq.levels {
		for _, v := range q.Values() {
			fn(v.(*Task))
		}
	}
}

// sleepKey orders the sleep queue: wake tick first, then insertion order.
type sleepKey struct {
	wake Tick
	seq  uint64
}

// sleepCmp implements the Comparator for the red-black tree. Wake ticks are
// compared by modular distance, never by raw value.
func sleepCmp(a, b any) int {
	ka, kb := a.(sleepKey), b.(sleepKey)
	if c := compareTicks(ka.wake, kb.wake); c != 0 {
		return c
	}
	switch {
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// sleepQueue holds sleeping tasks ordered by wake tick.
type sleepQueue struct {
	rbt *redblacktree.Tree
}

func newSleepQueue() *sleepQueue {
	return &sleepQueue{rbt: redblacktree.NewWith(sleepCmp)}
}

func (sq *sleepQueue) insert(t *Task) {
	sq.rbt.Put(sleepKey{t.wake, t.seq}, t)
}

// popDue removes and returns the earliest sleeper if it is due at now.
func (sq *sleepQueue) popDue(now Tick) *Task {
	node := sq.rbt.Left()
	if node == nil {
		return nil
	}
	key := node.Key.(sleepKey)
	if !Due(now, key.wake) {
		return nil
	}
	t := node.Value.(*Task)
	sq.rbt.Remove(key)
	return t
}

func (sq *sleepQueue) size() int { return sq.rbt.Size() }

func (sq *sleepQueue) each(fn func(*Task)) {
	for _, v := range sq.rbt.Values() {
		fn(v.(*Task))
	}
}

// blockedSet tracks tasks waiting on a primitive.
type blockedSet struct {
	set *hashset.Set
}

func newBlockedSet() *blockedSet {
	return &blockedSet{set: hashset.New()}
}

func (bs *blockedSet) add(t *Task)    { bs.set.Add(t) }
func (bs *blockedSet) remove(t *Task) { bs.set.Remove(t) }

func (bs *blockedSet) each(fn func(*Task)) {
	for _, v := range bs.set.Values() {
		fn(v.(*Task))
	}
}
