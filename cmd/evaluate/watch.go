package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/batch"
	"github.com/WessleyAI/evalpipe/engine/report"
)

func newWatchCmd(opts *rootOpts) *cobra.Command {
	var (
		dir      string
		out      string
		state    string
		interval time.Duration
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Evaluate new pairs as they appear in a directory, appending to a CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			if state == "" {
				state = filepath.Join(dir, ".evaluate-state.json")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			w := &batch.Watch{
				Dir:       dir,
				StatePath: state,
				Interval:  interval,
				Runner:    &batch.Runner{Eval: a.Evaluator, Workers: workers, Logger: a.Logger, Metrics: a.Metrics},
				OnRows:    func(rows []report.Row) error { return batch.AppendCSVFile(out, rows) },
				Logger:    a.Logger,
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data/samples", "directory to watch for sample pairs")
	cmd.Flags().StringVar(&out, "out", "data/batch_results.csv", "CSV to append results to")
	cmd.Flags().StringVar(&state, "state", "", "processed-pairs state file (default <dir>/.evaluate-state.json)")
	cmd.Flags().DurationVar(&interval, "interval", batch.DefaultWatchInterval, "scan interval")
	cmd.Flags().IntVar(&workers, "workers", batch.DefaultWorkers, "concurrent evaluations")
	return cmd
}
