package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/akylbek/payment-system/sunny-gateway/internal/cli"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx, version)
	stop()
	telemetry.Shutdown(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
