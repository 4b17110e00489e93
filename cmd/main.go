package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"


	"github.com/desertthunder/footprint/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.app().Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
		case errors.Is(err, shared.ErrNotAuthenticated):
			logger.Error("not logged in; run 'footprint login <username>' first")
			runner.Close()
			os.Exit(1)
		default:
			runner.Close()
			logger.Fatalf("application error: %v", err)
		}
	}
}
