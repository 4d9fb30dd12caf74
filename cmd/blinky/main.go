//go:build tinygo

// Command blinky is the LED flash demo as board firmware: the scheduler runs
// one task that toggles the on-board LED, 100 ticks high and 100 ticks low.
package main

import (
	"context"
	"machine"
	"time"

	"tickrtos/internal/gpio"
	"tickrtos/internal/job"
	"tickrtos/internal/sched"
)

const (
	flashPriority   = 5
	flashStackBytes = 512
	flashHalfPeriod = 100 // ticks
)

func main() {
	cfg := sched.DefaultConfig()
	s := sched.New(cfg, sched.WithClock(sched.NewTickClock(4)))

	// Pin driver for the on-board LED
	led, err := gpio.NewOutput(gpio.NewMachineDriver(), gpio.Pin(machine.LED))
	if err != nil {
		halt(err)
	}

	if _, err := s.Spawn("LED Flash", job.Blink(led, flashHalfPeriod), flashStackBytes, flashPriority, nil); err != nil {
		halt(err)
	}

	// Start only returns if the system halts
	halt(s.Start(context.Background()))
}

// halt reports why the scheduler stopped on the console, forever.
func halt(err error) {
	for {
		if err != nil {
			println("scheduler halted:", err.Error())
		} else {
			println("scheduler halted")
		}
		time.Sleep(5 * time.Second)
	}
}
