package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tickrtos/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the ticksched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ticksched",
		Short: "Tick-driven priority scheduler with an LED blink demo",
		Long: "ticksched runs a preemptive, tick-driven task scheduler and the classic\n" +
			"LED flash task on top of it, either against a real-time tick or in\n" +
			"simulation as fast as the host allows.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Scheduler config file (missing file means defaults)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
	)
	return root
}
