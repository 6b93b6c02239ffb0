package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/batch"
	"github.com/WessleyAI/evalpipe/engine/report"
)

func newBenchmarkCmd() *cobra.Command {
	var (
		csvPath string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Summarize a batch CSV as a markdown report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := os.Open(csvPath)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no batch results at %s; run `evaluate batch` first", csvPath)
			}
			if err != nil {
				return err
			}
			defer in.Close()

			rows, err := batch.ReadCSV(in)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.RenderBenchmark(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "data/batch_results.csv", "batch CSV to read")
	cmd.Flags().StringVar(&out, "out", "docs/benchmark_results.md", "markdown output path")
	return cmd
}
