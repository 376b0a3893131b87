package kv

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"clickearn/internal/config"
	"clickearn/internal/pkg/db"
)

// Open builds the Store selected by the storage configuration.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		backend = NewMemoryBackend()
	case config.DriverSQLite:
		backend, err = OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		var pool *db.Pool
		pool, err = db.NewPool(ctx, &cfg.Database)
		if err != nil {
			break
		}
		backend, err = OpenPostgres(ctx, pool)
		if err != nil {
			pool.Close()
		}
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("driver", cfg.Storage.Driver).
		Str("namespace", cfg.Storage.Namespace).
		Msg("Store opened")

	return NewStore(backend, cfg.Storage.Namespace), nil
}
