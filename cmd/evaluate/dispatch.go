package main

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/app"
	"github.com/WessleyAI/evalpipe/engine/batch"
)

func newDispatchCmd() *cobra.Command {
	var (
		dir     string
		out     string
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Publish a directory of pairs as NATS jobs and optionally collect the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			pairs, err := batch.FindPairs(dir)
			if err != nil {
				return err
			}
			nc, err := nats.Connect(cfg.NATSURL, nats.Name("evaluate-dispatch"))
			if err != nil {
				return fmt.Errorf("nats connect: %w", err)
			}
			defer nc.Drain()

			var col *batch.Collector
			if wait {
				if col, err = batch.NewCollector(nc, logger); err != nil {
					return err
				}
				defer col.Close()
			}
			jobs, err := batch.Dispatch(cmd.Context(), nc, pairs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %d jobs to %s.\n", len(jobs), batch.JobSubject)
			if !wait {
				return nil
			}

			outcomes, waitErr := col.Wait(cmd.Context(), jobs, timeout)
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.Source.ChatPath, o.Err)
				}
			}
			rows := batch.Rows(outcomes)
			if err := writeCSVFile(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch results saved to %s (%d of %d jobs)\n", out, len(rows), len(jobs))
			return waitErr
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data/samples", "directory holding sample pairs")
	cmd.Flags().StringVar(&out, "out", "data/batch_results.csv", "CSV output path")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for results and write the CSV")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for results")
	return cmd
}
