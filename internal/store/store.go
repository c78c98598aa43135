// Package store persists the facility catalog in PostgreSQL or SQLite.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitesurvey-cli/internal/config"
	"github.com/sells-group/sitesurvey-cli/internal/facility"
)

var (
	_ facility.Store = (*PostgresStore)(nil)
	_ facility.Store = (*SQLiteStore)(nil)
	_ facility.Tx    = (*pgTx)(nil)
	_ facility.Tx    = (*sqliteTx)(nil)
)

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (facility.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, eris.New("store: no database_url configured (set store.database_url)")
	}
	switch cfg.Driver {
	case "postgres", "":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
