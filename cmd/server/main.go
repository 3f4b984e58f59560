package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/word-guess-backend/internal/app"
	"github.com/DoyleJ11/word-guess-backend/internal/config"
)

func main() {
	log.SetFlags(0)

	// Optional .env next to the binary; real env vars win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, func(ctx context.Context, cfg *config.Config) error {
		logger, err := app.NewLogger(cfg.Verbose)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return app.Run(ctx, cfg, logger)
	})
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
