// SPDX-License-Identifier: MIT
package main

import (
	"affect/cmd"
	"affect/internal/log"
	"affect/pkg/build"
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// Cancelled on the first termination signal; every command shuts down from it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil && ctx.Err() == nil {
		stop()
		log.Fatalf("%v", err)
	}
}
