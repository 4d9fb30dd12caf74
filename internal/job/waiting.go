package job

import (
	"tickrtos/internal/sched"
)

// SleepWork returns a task body that sleeps for ticks ticks, rounds times,
// and then returns. rounds <= 0 means forever.
func SleepWork(ticks uint32, rounds int) sched.EntryFunc {
	return func(tc *sched.TaskContext) {
		for i := 0; rounds <= 0 || i < rounds; i++ {
			if err := tc.Delay(ticks); err != nil {
				return
			}
		}
	}
}
