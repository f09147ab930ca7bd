package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open constructs the configured backend. Driver is "postgres" or "sqlite";
// for sqlite the DSN is a file path (or ":memory:").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
