package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/semmidev/influx-s3/internal/app"
	"github.com/semmidev/influx-s3/internal/cli"
	"github.com/semmidev/influx-s3/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	startedAt := time.Now()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand(func(ctx context.Context, cfg *config.Config) (cli.App, error) {
		return app.New(ctx, cfg, app.Options{StartedAt: startedAt})
	})
	return root.ExecuteContext(ctx)
}
