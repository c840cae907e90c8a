package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"
	"project-tracker-api/internal/store"
)

func main() {
	status := flag.Bool("status", false, "List migrations instead of applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseDSN == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := store.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer pg.Close(ctx)

	if *status {
		list, err := pg.Migrations(ctx)
		if err != nil {
			log.WithError(err).Fatal("failed to list migrations")
		}
		for _, m := range list {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %s %s\n", state, m.Checksum[:12], m.Name)
		}
		return
	}

	applied, err := pg.Migrate(ctx)
	for _, name := range applied {
		log.WithField("file", name).Info("migration applied")
	}
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.WithField("applied", len(applied)).Info("database is up to date")
}
