// Command pubsub-ops manages self-updates for the fleet-deployed
// IoT pub/sub GUI from its git release branches.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iotlab/pubsub-ops/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := (&cmd.RootCommand{}).GetCobraCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
