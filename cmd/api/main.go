package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fedsync/internal/app/bootstrap"
)

// API process entrypoint.
// Serves the signed federation endpoints until SIGINT/SIGTERM.
func main() {
	log.Println("fedsync api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("fedsync api stopped with error: %v", err)
	}
}
