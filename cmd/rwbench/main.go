package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwbench: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		}
	}

	stop()
	os.Exit(exitCode(err))
}
