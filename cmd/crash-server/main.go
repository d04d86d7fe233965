package main

import (
	"context"
	"crash_backend/internal/app"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewApp().Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to serve")
	}
}
