// Command sagasynth connects a wallet to the SagaSynth contract and backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	lggr, err := newLogger()
	if err != nil {
		return err
	}

	root := &cobra.Command{
		Use:           "sagasynth",
		Short:         "SagaSynth wallet, contract and backend CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err = commands.New(lggr).AddTo(root); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return root.ExecuteContext(ctx)
}

// newLogger builds the CLI logger from the SAGASYNTH_LOG_* environment variables.
func newLogger() (logger.Logger, error) {
	cfg, err := config.LoadEnv()
	if err != nil {
		return logger.New()
	}

	return environment.NewLogger(cfg.Log)
}
