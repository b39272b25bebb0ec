package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/poknet/pokengine/app/engine"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := engine.Initialize(ctx)

	if err := engine.SetupScheduler(app); err != nil {
		app.Logger.Fatal("Unable to initialize scheduler", zap.Error(err))
	}
	app.StartCron()

	if err := engine.NewServer(app); err != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(err))
	}

	app.Start(ctx)
}
