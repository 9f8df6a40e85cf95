package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/logger"
)

var version = "0.1.0"

func main() {
	// TRANSMUTA_* settings may come from a .env file
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		logger.Get().Error("command failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
