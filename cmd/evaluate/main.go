// Command evaluate scores chat turns from the command line: one pair, a
// directory of pairs, or distributed over NATS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/evalpipe/engine/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOpts struct {
	thresholds string
}

func newRootCmd() *cobra.Command {
	var opts rootOpts
	root := &cobra.Command{
		Use:           "evaluate",
		Short:         "Score LLM chat turns for relevance, completeness and factuality",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.thresholds, "thresholds", "", "thresholds YAML (default $THRESHOLDS_PATH)")

	root.AddCommand(
		newRunCmd(&opts),
		newBatchCmd(&opts),
		newBenchmarkCmd(),
		newDispatchCmd(),
		newWatchCmd(&opts),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *rootOpts) (app.Config, error) {
	cfg, err := app.Load(cmd.Context())
	if err != nil {
		return cfg, err
	}
	if opts != nil && opts.thresholds != "" {
		cfg.ThresholdsPath = opts.thresholds
	}
	return cfg, nil
}

// buildApp logs to stderr so stdout stays machine-readable.
func buildApp(cmd *cobra.Command, opts *rootOpts) (*app.App, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return app.Build(cmd.Context(), cfg, logger, nil, nil)
}
