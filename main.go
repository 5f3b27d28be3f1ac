package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/n8n-workflow-deployer/cmd"
)

func main() {
	// Stop scheduling new files on interrupt; in-flight requests are cancelled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		os.Exit(1)
	}
}
