package sched

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned by Spawn when the task table or the
	// stack pool has no room left. It is not fatal.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrStackOverflow means a task wrote into its stack guard region.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrInvalidState covers scheduler operations used outside their context,
	// e.g. a delay requested by a task that is not running.
	ErrInvalidState = errors.New("invalid state")

	// ErrHalted is returned by operations on a scheduler that has stopped.
	ErrHalted = errors.New("scheduler halted")
)

// FatalError is the reason a scheduler halted.
type FatalError struct {
	Task TaskID
	Tick Tick
	Err  error
}

func (e *FatalError) Error() string {
	if e.Task == 0 {
		return fmt.Sprintf("fatal at tick %d: %v", e.Tick, e.Err)
	}
	return fmt.Sprintf("fatal at tick %d in task %d: %v", e.Tick, e.Task, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
