package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/batch"
	"github.com/WessleyAI/evalpipe/engine/report"
)

func newBatchCmd(opts *rootOpts) *cobra.Command {
	var (
		dir     string
		out     string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate every chat/context pair in a directory and write a CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pairs, err := batch.FindPairs(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d pairs.\n", len(pairs))

			a, err := buildApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			r := &batch.Runner{Eval: a.Evaluator, Workers: workers, Logger: a.Logger, Metrics: a.Metrics}
			outcomes := r.Run(cmd.Context(), pairs)
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(o.Source.ChatPath), o.Err)
				}
			}
			rows := batch.Rows(outcomes)
			if err := writeCSVFile(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch results saved to %s (%d of %d pairs)\n", out, len(rows), len(pairs))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data/samples", "directory holding sample pairs")
	cmd.Flags().StringVar(&out, "out", "data/batch_results.csv", "CSV output path")
	cmd.Flags().IntVar(&workers, "workers", batch.DefaultWorkers, "concurrent evaluations")
	return cmd
}

func writeCSVFile(path string, rows []report.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := batch.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
