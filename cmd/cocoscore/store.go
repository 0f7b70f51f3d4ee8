package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognicore/cocoscore/pkg/cocoscore/config"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/memstore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/postgres"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/sqlite"
)

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return memstore.New(), nil
	case "sqlite":
		st, err := sqlite.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case "postgres":
		st, err := postgres.Open(ctx, cfg.DSN, postgres.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
