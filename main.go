package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohitshetty84/multiagent/cmd/root"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
