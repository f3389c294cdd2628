package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server"
	"github.com/dmitrijs2005/walletkeeper/internal/server/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

// run returns only after the server stops. Startup failures are returned so
// main can exit non-zero.
func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	logger, sync, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return fmt.Errorf("startup failed: %w", err)
	}

	app.Run(ctx)
	return nil
}
