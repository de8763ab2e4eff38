package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/clock/manual"
	"github.com/ndtworks/tubescan/internal/clock/system"
	"github.com/ndtworks/tubescan/internal/engine"
	"github.com/ndtworks/tubescan/internal/loader"
	"github.com/ndtworks/tubescan/internal/progress"
	"github.com/ndtworks/tubescan/internal/progress/sinks"
	"github.com/ndtworks/tubescan/internal/scheduler"
)

// newSimulateCmd creates the 'simulate' subcommand for headless runs.
func newSimulateCmd() *cobra.Command {
	var (
		layoutPath string
		realtime   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one inspection simulation over a CSV layout and exit",
		Long: `Loads a hole layout from CSV, partitions and sequences it, then runs the
detection simulation to completion. By default ticks are driven as fast as
possible; --realtime paces them at the configured tick interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd.Context(), layoutPath, realtime)
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "path to the layout CSV (required)")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace ticks at the configured interval")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}

func runSimulate(ctx context.Context, layoutPath string, realtime bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	holes, err := loader.ParseFile(layoutPath)
	if err != nil {
		return err
	}

	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Close(closeCtx)
	}()

	eng, err := engine.New(cfg.Engine(), hub, system.New(), logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	if err := eng.LoadGeometry(holes); err != nil {
		return fmt.Errorf("load geometry: %w", err)
	}

	if realtime {
		err = runPaced(ctx, eng, cfg.TickInterval())
	} else {
		err = runFast(ctx, eng)
	}
	if err != nil {
		return err
	}

	stats := eng.GlobalStats()
	logger.Info("simulation finished",
		zap.String("state", string(eng.State())),
		zap.Int("total", stats.Total),
		zap.Int("qualified", stats.Qualified),
		zap.Int("defective", stats.Defective),
		zap.Int("blind", stats.Blind),
		zap.Int("tie_rod", stats.TieRod),
		zap.Float64("qualification_rate", stats.QualificationRate),
	)
	return nil
}

// runFast drives ticks synchronously, as fast as the machine allows. The
// silent ticker keeps the run goroutine parked while we advance by hand.
func runFast(ctx context.Context, eng *engine.Engine) error {
	if err := eng.Start(ctx, manual.NewTicker()); err != nil {
		return fmt.Errorf("start simulation: %w", err)
	}
	defer eng.Stop()
	for eng.State() == scheduler.StateRunning {
		if ctx.Err() != nil {
			return fmt.Errorf("simulation interrupted: %w", ctx.Err())
		}
		eng.Tick()
	}
	return nil
}

// runPaced lets the wall-clock ticker drive the run and waits for it to end.
func runPaced(ctx context.Context, eng *engine.Engine, interval time.Duration) error {
	if err := eng.Start(ctx, system.NewTicker(interval)); err != nil {
		return fmt.Errorf("start simulation: %w", err)
	}
	defer eng.Stop()
	poll := time.NewTicker(interval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("simulation interrupted: %w", ctx.Err())
		case <-poll.C:
			switch eng.State() {
			case scheduler.StateCompleted, scheduler.StateStopped:
				return nil
			}
		}
	}
}
