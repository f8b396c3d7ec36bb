package repository

import (
	"context"
	"database/sql"
)

// MySQLStore is the relational Store backend.  It composes the per-table
// repos over one connection pool.
type MySQLStore struct {
	*UserRepo
	*MessageRepo
	*ResponseRepo
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		UserRepo:     NewUserRepo(db),
		MessageRepo:  NewMessageRepo(db),
		ResponseRepo: NewResponseRepo(db),
		db:           db,
	}
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
