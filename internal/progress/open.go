package progress

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/affmigrate/internal/repositories"
	"github.com/desertthunder/affmigrate/internal/shared"
)

// Open returns the store selected by cfg.Driver. db backs the sqlite driver.
func Open(ctx context.Context, cfg shared.ProgressConfig, db *sql.DB) (Store, error) {
	switch cfg.Driver {
	case shared.DriverSQLite, "":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite progress store needs a database", shared.ErrMissingConfig)
		}
		return repositories.NewOptionRepository(db), nil
	case shared.DriverMemory:
		return NewMemoryStore(), nil
	case shared.DriverRedis:
		store, err := NewRedisStore(cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownDriver, cfg.Driver)
	}
}
