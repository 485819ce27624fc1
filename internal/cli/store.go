package cli

import (
	"context"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/store/memory"
	"github.com/xraph/streamswap/store/mongo"
	"github.com/xraph/streamswap/store/postgres"
	"github.com/xraph/streamswap/store/sqlite"
)

// openStore connects the backend named by cfg.Driver.
func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return sqlite.New(db), nil
	case "postgres", "pg":
		drv := pgdriver.New()
		if err := drv.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return postgres.New(db), nil
	case "mongo", "mongodb":
		drv := mongodriver.New()
		if err := drv.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
