package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eddiefleurent/seasonal_trader/internal/status"
	"github.com/eddiefleurent/seasonal_trader/internal/tasks"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the materializer and execution passes on their schedule",
	Long: `Run starts the materializer loop, the execution loop and, when enabled,
the status server. SIGINT or SIGTERM lets the in-flight pass finish before exit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.logger.WithField("mode", a.cfg.Environment.Mode)
	if a.cfg.IsPaperTrading() {
		log.Info("Paper trading mode: orders go to the simulated venue")
	} else {
		log.Warn("Live trading mode: real money at risk")
	}

	intervals := tasks.Intervals{
		Materialize: a.cfg.Schedule.MaterializeInterval.Std(),
		Execute:     a.cfg.Schedule.ExecuteInterval.Std(),
	}

	runner := tasks.NewRunner(a.materializer, a.engine, nil, intervals, a.logger.WithField("component", "runner"))
	if a.cfg.Status.Enabled {
		runner.SetServer(status.NewServer(status.Config{
			Addr:      a.cfg.Status.Addr,
			AuthToken: a.cfg.Status.AuthToken,
		}, a.store, a.metrics.Registry(), runner, a.logger.WithField("component", "status")))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithField("materialize_every", intervals.Materialize).
		WithField("execute_every", intervals.Execute).
		Info("Starting seasonal runner")
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner stopped: %w", err)
	}
	log.Info("Runner stopped")
	return nil
}
