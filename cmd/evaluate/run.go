package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/ingest"
	"github.com/WessleyAI/evalpipe/engine/report"
)

func newRunCmd(opts *rootOpts) *cobra.Command {
	var src ingest.Source
	cmd := &cobra.Command{
		Use:   "run --chat FILE --ctx FILE",
		Short: "Evaluate one chat/context pair and print the report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			rep, err := a.Evaluator.EvaluateFiles(cmd.Context(), src)
			if err != nil {
				return err
			}
			return report.RenderJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&src.ChatPath, "chat", "", "path to chat JSON")
	cmd.Flags().StringVar(&src.CtxPath, "ctx", "", "path to context JSON")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("ctx")
	return cmd
}
