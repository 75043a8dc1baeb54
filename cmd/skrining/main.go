package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"skrining/internal/cli/commands"
)

// main only owns the signal context; commands own every resource and release
// it (lock files included) before returning.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
