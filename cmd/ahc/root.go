package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/ahc/datarecording"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/topology"
)

// globalFlags are shared by every scenario.
type globalFlags struct {
	logLevel string
	record   string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	if err := loadEnv(".env"); err != nil {
		fmt.Printf("Failed to load .env: %v\n", err)
	}

	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use: "ahc",
		Short: "ahc runs distributed algorithms on a simulated network of " +
			"concurrently running components.",
		Long: `ahc runs distributed algorithms on a simulated network of ` +
			`concurrently running components. Each subcommand builds a ` +
			`topology, runs one scenario, and prints a summary.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level",
		envString(envLogLevel, "warn"), "debug, info, warn, or error")
	rootCmd.PersistentFlags().StringVar(&flags.record, "record",
		envString(envRecord, ""),
		"record events into the given SQLite database, without the suffix")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout",
		envDuration(envTimeout, 10*time.Second),
		"give up if the scenario does not finish in time")

	rootCmd.AddCommand(
		newSnapshotCmd(flags),
		newFloodCmd(flags),
		newFairLossCmd(flags),
	)

	return rootCmd
}

// A run holds what every scenario needs: a registry whose diagnostics are
// logged, and optionally a recorder.
type run struct {
	logger   zerolog.Logger
	registry *sim.Registry
	recorder datarecording.DataRecorder
	exec     *datarecording.ExecRecorder
	tracer   *datarecording.Tracer
	ctx      context.Context
	cancel   context.CancelFunc
}

func newRun(cmd *cobra.Command, flags *globalFlags) (*run, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(flags.logLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", flags.logLevel, err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		With().Timestamp().Logger().Level(level)

	r := &run{
		logger:   logger,
		registry: sim.NewRegistry(),
	}

	r.registry.AcceptHook(sim.NewLogHook(logger))

	if level <= zerolog.DebugLevel {
		r.registry.AcceptHook(sim.NewEventLogger(logger))
	}

	r.ctx, r.cancel = context.WithTimeout(cmd.Context(), flags.timeout)

	if flags.record != "" {
		if err := r.startRecording(cmd, flags.record); err != nil {
			r.cancel()
			return nil, err
		}
	}

	return r, nil
}

func (r *run) startRecording(cmd *cobra.Command, path string) error {
	recorder, err := datarecording.New(path)
	if err != nil {
		return err
	}

	exec, err := datarecording.NewExecRecorder(recorder)
	if err != nil {
		return err
	}

	tracer, err := datarecording.NewTracer(recorder)
	if err != nil {
		return err
	}

	exec.Start()
	exec.Set("Scenario", cmd.Name())
	cmd.Flags().Visit(func(f *pflag.Flag) {
		exec.Set("Flag "+f.Name, f.Value.String())
	})

	r.registry.AcceptHook(tracer)
	r.recorder = recorder
	r.exec = exec
	r.tracer = tracer

	r.logger.Info().Str("path", path+".sqlite3").Msg("recording")

	return nil
}

// close stops the components and writes the recording.
func (r *run) close() error {
	r.cancel()
	r.registry.Stop()

	if r.recorder == nil {
		return nil
	}

	if err := r.exec.End(); err != nil {
		return err
	}

	if err := r.tracer.Err(); err != nil {
		r.logger.Error().Err(err).Msg("some records were lost")
	}

	return r.recorder.Close()
}

func buildGraph(kind string, n int, p float64, seed int64) (
	*topology.Graph,
	error,
) {
	if n < 1 {
		return nil, fmt.Errorf("number of nodes must be positive, got %d", n)
	}

	switch kind {
	case "ring":
		return topology.Ring(n, true), nil
	case "uring":
		return topology.Ring(n, false), nil
	case "path":
		return topology.Path(n), nil
	case "complete":
		return topology.Complete(n), nil
	case "random":
		return topology.RandomGNP(n, p, seed, false), nil
	default:
		return nil, fmt.Errorf("unknown graph %q", kind)
	}
}

// waitFor polls the condition until it holds or the run times out.
func (r *run) waitFor(cond func() bool) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for !cond() {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// settle waits until the value stops changing for the given duration.
func (r *run) settle(value func() int, quiet time.Duration) error {
	last := value()
	stableSince := time.Now()

	return r.waitFor(func() bool {
		v := value()
		if v != last {
			last = v
			stableSince = time.Now()

			return false
		}

		return time.Since(stableSince) >= quiet
	})
}
