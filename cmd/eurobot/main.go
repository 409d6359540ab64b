package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eurobot/webchat/cmd/eurobot/cmds"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmds.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
