package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tickrtos/internal/gpio"
	"tickrtos/internal/job"
	"tickrtos/internal/sched"
	"tickrtos/internal/trace"
)

type runOptions struct {
	ticks      uint64
	duration   time.Duration
	pin        uint32
	halfPeriod time.Duration
	priority   int
	stack      int
	sleepers   int
	gpioKind   string
	serialPort string
	baud       int
	traceCSV   string
	traceDB    string
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler with the LED flash task",
		Long: "Start the scheduler with the LED flash task. With --ticks the timer\n" +
			"interrupt is simulated: each tick fires once the previous one has been\n" +
			"fully handled. Otherwise ticks come from a real-time clock at tick_hz.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd, o)
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&o.ticks, "ticks", 0, "Simulate this many ticks and stop (0 = real-time clock)")
	f.DurationVar(&o.duration, "duration", 0, "Stop after this long in real-time mode (0 = until interrupted)")
	f.Uint32Var(&o.pin, "pin", 13, "LED pin number")
	f.DurationVar(&o.halfPeriod, "half-period", time.Second, "Time the LED spends in each level")
	f.IntVar(&o.priority, "priority", 5, "LED task priority")
	f.IntVar(&o.stack, "stack", 512, "LED task stack size in bytes")
	f.IntVar(&o.sleepers, "sleepers", 0, "Extra background tasks sleeping one tick at a time")
	f.StringVar(&o.gpioKind, "gpio", "log", "Pin driver: memory, log, serial")
	f.StringVar(&o.serialPort, "serial-port", "", "Serial device for --gpio=serial")
	f.IntVar(&o.baud, "baud", 115200, "Serial baud rate")
	f.StringVar(&o.traceCSV, "trace-csv", "", "Write scheduler events to this CSV file")
	f.StringVar(&o.traceDB, "trace-db", "", "Write scheduler events to this SQLite database")
	return cmd
}

func runScheduler(cmd *cobra.Command, o runOptions) error {
	cfg, err := sched.Load(flagConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.ticks == 0 && o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	opts := []sched.Option{sched.WithLogger(logger)}
	if o.ticks == 0 {
		opts = append(opts, sched.WithClock(sched.NewTickClock(16)))
	}
	if o.traceCSV != "" {
		sink, err := trace.CreateCSV(o.traceCSV)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts = append(opts, sched.WithSink(sink))
	}
	var db *trace.SQLiteSink
	if o.traceDB != "" {
		db, err = trace.OpenSQLite(ctx, o.traceDB, cfg.TickHz, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, sched.WithSink(db))
	}

	s := sched.New(cfg, opts...)

	drv, closeDrv, err := openDriver(o, s)
	if err != nil {
		return err
	}
	defer closeDrv()
	led, err := gpio.NewOutput(drv, gpio.Pin(o.pin))
	if err != nil {
		return err
	}

	half := sched.TicksFor(o.halfPeriod, cfg.TickHz)
	if half == 0 {
		half = 1
	}
	if _, err := s.Spawn("LED Flash", job.Blink(led, half), o.stack, o.priority, nil); err != nil {
		return err
	}
	for i := 0; i < o.sleepers; i++ {
		if _, err := s.Spawn(fmt.Sprintf("sleeper-%d", i), job.SleepWork(1, 0), 0, 1, nil); err != nil {
			return err
		}
	}

	if o.ticks > 0 {
		go simulate(ctx, s, o.ticks)
	}
	logger.Info("running", "pin", o.pin, "half_period_ticks", half, "simulated_ticks", o.ticks)

	err = s.Start(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	printSummary(cmd.OutOrStdout(), s, drv)
	if db != nil {
		if counts, cerr := db.CountByKind(context.Background()); cerr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "trace run %s: %d dispatches\n", db.RunID(), counts["Dispatch"])
		}
	}
	return err
}

// simulate fires ticks back to back, each once the system has gone idle,
// then halts the scheduler.
func simulate(ctx context.Context, s *sched.Scheduler, ticks uint64) {
	for i := uint64(0); i < ticks; i++ {
		if err := s.WaitIdle(ctx); err != nil {
			return
		}
		s.Tick()
	}
	if err := s.WaitIdle(ctx); err != nil {
		return
	}
	s.Halt()
}

func openDriver(o runOptions, s *sched.Scheduler) (gpio.Driver, func(), error) {
	noop := func() {}
	switch o.gpioKind {
	case "memory":
		return gpio.NewMemoryDriver(func() uint32 { return uint32(s.Now()) }), noop, nil
	case "log":
		return gpio.NewLogDriver(gpio.NewMemoryDriver(func() uint32 { return uint32(s.Now()) }), logger), noop, nil
	case "serial":
		if o.serialPort == "" {
			return nil, nil, errors.New("--gpio=serial requires --serial-port")
		}
		drv, err := gpio.OpenSerial(o.serialPort, o.baud)
		if err != nil {
			return nil, nil, err
		}
		return drv, func() { drv.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown gpio driver %q (want memory, log or serial)", o.gpioKind)
	}
}

func printSummary(w io.Writer, s *sched.Scheduler, drv gpio.Driver) {
	st := s.Stats()
	fmt.Fprintf(w, "ticks: %s  switches: %s  wakeups: %s  preemptions: %s\n",
		humanize.Comma(int64(st.Ticks)),
		humanize.Comma(int64(st.Switches)),
		humanize.Comma(int64(st.Wakeups)),
		humanize.Comma(int64(st.Preemptions)))
	fmt.Fprintf(w, "stack in use: %s of %s\n",
		humanize.IBytes(uint64(st.StackUsed)),
		humanize.IBytes(uint64(s.Config().StackPoolBytes)))
	for _, ti := range s.Tasks() {
		fmt.Fprintf(w, "  task %d %-12s prio=%d %-8s stack free %s\n",
			ti.ID, ti.Name, ti.Priority, ti.State, humanize.IBytes(uint64(ti.StackFree)))
	}
	if mem, ok := drv.(*gpio.MemoryDriver); ok {
		fmt.Fprintf(w, "pin transitions: %d\n", len(mem.History()))
	}
}
