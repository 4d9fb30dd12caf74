package sched

import (
	"math"
	"testing"
)

func TestReadyQueuePriorityThenFIFO(t *testing.T) {
	rq := newReadyQueue(8)
	a := &Task{ID: 1, Priority: 2}
	b := &Task{ID: 2, Priority: 5}
	c := &Task{ID: 3, Priority: 2}
	d := &Task{ID: 4, Priority: 5}
	for _, tk := range []*Task{a, b, c, d} {
		rq.push(tk)
	}

	if rq.top() != 5 {
		t.Fatalf("top = %d, want 5", rq.top())
	}
	var got []TaskID
	for !rq.empty() {
		got = append(got, rq.pop().ID)
	}
	want := []TaskID{2, 4, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
	if rq.pop() != nil || rq.top() != -1 {
		t.Error("empty queue should pop nil and report top -1")
	}
}

func TestSleepQueueOrdersAcrossWrap(t *testing.T) {
	sq := newSleepQueue()
	late := &Task{ID: 1, wake: 3, seq: 1}
	early := &Task{ID: 2, wake: math.MaxUint32 - 1, seq: 2}
	tie := &Task{ID: 3, wake: 3, seq: 3}
	sq.insert(late)
	sq.insert(tie)
	sq.insert(early)

	now := Tick(math.MaxUint32 - 3)
	if sq.popDue(now) != nil {
		t.Fatal("nothing is due yet")
	}

	now += 2 // MAX-1
	if got := sq.popDue(now); got != early {
		t.Fatalf("expected the pre-wrap sleeper first, got %+v", got)
	}
	if sq.popDue(now) != nil {
		t.Fatal("post-wrap sleepers are not due before the wrap")
	}

	now += 5 // 3, after wrapping
	if got := sq.popDue(now); got != late {
		t.Fatalf("expected insertion order on ties, got task %d", got.ID)
	}
	if got := sq.popDue(now); got != tie {
		t.Fatalf("expected second tied sleeper, got %+v", got)
	}
	if sq.size() != 0 {
		t.Errorf("sleep queue should be empty, has %d", sq.size())
	}
}
