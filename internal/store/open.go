package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/postgres"
)

// Open builds the Store named by cfg.Store.Driver. For postgres it connects,
// applies the schema and returns a closer for the pool.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.Store.Driver {
	case "memory":
		slog.Warn("using in-memory document store, data is lost on exit")
		return NewMemory(), func() error { return nil }, nil
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		pg := NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("applying schema: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return pg, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
