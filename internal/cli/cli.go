// Package cli provides the command-line interface for QuantPilot
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Run starts the CLI application
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, release := NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	release()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
