package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	commit    = ""
	buildDate = "19/10/2026"
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autorun <schedule.yaml>",
		Short: "autorun: time-windowed batch runner for DAQ sessions",
		Long: "autorun executes the runs of a schedule one after another, each inside its own time window, " +
			"generating a per-run configuration file when a run overrides parameters.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "", "Override the schedule's log level. Available: debug, info, warning, error, critical")
	cmd.Flags().String("metrics-file", "", "write a Prometheus textfile with run outcomes when the queue ends")
	cmd.Flags().String("output-dir", ".", "directory for derived configuration files")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autorun %s (%s) %s\n", version, commit, buildDate)
		},
	}
}

// Main entry point
func main() {
	root := newRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
