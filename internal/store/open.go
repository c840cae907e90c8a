package store

import (
	"context"
	"fmt"
	"time"

	"project-tracker-api/internal/config"
)

// Open connects the backend named by cfg.StoreDriver. Mongo indexes are
// created on the way up; Postgres schema is left to Migrate.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "mongo":
		m, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			m.Close(context.Background())
			return nil, err
		}
		return m, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
