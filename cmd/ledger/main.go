// The main package for the ledger executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/canadian-music-ledger/cmd"
)

// main defers all execution to the Cobra CLI. SIGINT and SIGTERM cancel the run.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
