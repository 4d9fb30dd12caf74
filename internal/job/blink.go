package job

import (
	"tickrtos/internal/gpio"
	"tickrtos/internal/sched"
)

// Blink returns a task body that drives out high, sleeps halfPeriod ticks,
// drives it low and sleeps again, forever. The task ends if the pin or the
// scheduler reports an error.
func Blink(out *gpio.Output, halfPeriod uint32) sched.EntryFunc {
	return func(tc *sched.TaskContext) {
		for {
			if err := out.High(); err != nil {
				return
			}
			if err := tc.Delay(halfPeriod); err != nil {
				return
			}
			if err := out.Low(); err != nil {
				return
			}
			if err := tc.Delay(halfPeriod); err != nil {
				return
			}
		}
	}
}
