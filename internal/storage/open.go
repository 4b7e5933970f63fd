// Package storage selects the CardStore implementation from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/card-balance-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage/sqlite"
)

// Open returns the store named by cfg.DatabaseDriver. The caller closes it.
func Open(ctx context.Context, cfg *config.AppConfig) (interfaces.CardStore, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return memory.NewMemoryCardStore(), nil
	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}
