// Command docindex is the offline companion to the indexer and searcher
// services.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
