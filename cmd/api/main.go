package main

import (
	"context"
	"log"

	"stagebook/internal/app"
	"stagebook/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("level=fatal msg=config_invalid err=%v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("level=fatal msg=app_init_failed err=%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("level=fatal msg=app_stopped_with_error err=%v", err)
	}
}
