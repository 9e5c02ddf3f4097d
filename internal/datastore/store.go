package datastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/lepinkainen/bookseed/internal/config"
)

// Store defines the interface for the relational book store
type Store interface {
	// Connect opens the connection and verifies it with a ping
	Connect(ctx context.Context) error

	// CreateTable executes a schema statement (expected to be idempotent)
	CreateTable(ctx context.Context, schema string) error

	// BatchInsert inserts all records into table inside a single transaction.
	// Values are taken from each record in the order given by columns.
	BatchInsert(ctx context.Context, table string, columns []string, records []map[string]any) error

	// Close closes the connection to the data store
	Close() error
}

// Open builds a Store for the configured driver. The store is not connected yet.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.Path), nil
	case config.DriverMySQL:
		return NewMySQLStore(cfg), nil
	case config.DriverPostgres:
		return NewPostgresStore(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
