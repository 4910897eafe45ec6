// Package main is the rtdebridge command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rtdebridge/cli"
	"go.viam.com/rtdebridge/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.Global().Fatal(err)
	}
}
