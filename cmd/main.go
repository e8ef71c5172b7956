package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lebinkproxy.dev/proxy/internal/interfaces/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := cli.NewCLIContainer()
	if err := cli.ExecuteContext(ctx, container); err != nil {
		cancel()
		os.Exit(1)
	}
}
