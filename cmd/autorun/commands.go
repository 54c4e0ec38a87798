package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/autorun/internal/core"
	"github.com/3cpo-dev/autorun/internal/logging"
	"github.com/3cpo-dev/autorun/internal/supervisor"
	"github.com/3cpo-dev/autorun/internal/telemetry"
)

// Run every run of a schedule
func runSchedule(cmd *cobra.Command, path string) error {
	sched, err := core.LoadConfig(path)
	if err != nil {
		return err
	}
	level := sched.Logging.Level
	if override, _ := cmd.Flags().GetString("log"); override != "" {
		level = override
	}
	logger, closer, err := logging.New(logging.Config{
		Level:     level,
		Directory: sched.Logging.Directory,
		Stdout:    cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	banner(logger)
	outputDir, _ := cmd.Flags().GetString("output-dir")
	collector := telemetry.NewCollector()
	sup := supervisor.New(supervisor.Config{
		Logger:    logger,
		KillAfter: sched.KillAfter.Std(),
	})
	runErr := core.NewScheduler(sched, sup, logger,
		core.WithRecorder(collector),
		core.WithWorkDir(outputDir),
	).Run(cmd.Context())

	collector.LogSummary(logger)
	if metricsFile, _ := cmd.Flags().GetString("metrics-file"); metricsFile != "" {
		if err := collector.WriteTextfile(metricsFile); err != nil {
			logger.Error().Err(err).Str("path", metricsFile).Msg("Could not write metrics")
		}
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Warn().Msg("Run queue stopped on request")
		return nil
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Run queue aborted")
		return runErr
	}
	return nil
}

func banner(logger zerolog.Logger) {
	line := strings.Repeat("-", 54)
	logger.Info().Msg(line)
	logger.Info().Msg("-------------------- DAQ autorun ---------------------")
	logger.Info().Msg(line)
}

// Check a schedule without running it
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schedule.yaml>",
		Short: "Check a schedule and its overrides, then print the run order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := core.LoadConfig(args[0])
			if err != nil {
				return err
			}
			queue, err := core.NewScheduler(sched, nil, zerolog.Nop()).Plan()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range queue {
				timing := "duration " + r.Duration.String()
				if r.Window != nil {
					timing = "window " + r.Window.String()
				}
				overrides := ""
				if r.Overrides != nil {
					overrides = "\toverrides"
				}
				fmt.Fprintf(out, "%s\t%s%s\n", r.ID, timing, overrides)
			}
			return nil
		},
	}
}
