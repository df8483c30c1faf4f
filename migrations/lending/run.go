package main

import (
	"context"
	"os"

	"github.com/ghuser/lendingdesk/migrations"
	"github.com/ghuser/lendingdesk/pkg/config"
	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/pkg/migrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)
	if err := migrator.Up(context.Background(), cfg.DatabaseURL, migrations.Lending()); err != nil {
		log.Error("lending migrations failed", "error", err)
		os.Exit(1)
	}
	log.Info("lending migrations applied")
}
