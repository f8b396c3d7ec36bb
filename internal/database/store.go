package database

import (
	"context"
	"fmt"

	"github.com/iliyamo/peer-support/internal/config"
	"github.com/iliyamo/peer-support/internal/repository"
	"github.com/iliyamo/peer-support/internal/repository/memstore"
	"github.com/iliyamo/peer-support/internal/repository/mongostore"
)

// OpenStore connects the backend selected by STORE_DRIVER.  The MySQL
// schema is applied on open.
func OpenStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverMySQL:
		m := cfg.MySQL
		db, err := Open(ctx, m.User, m.Pass, m.Host, m.Port, m.Name)
		if err != nil {
			return nil, err
		}
		if err := EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return repository.NewMySQLStore(db), nil
	case config.DriverMongo:
		return mongostore.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
