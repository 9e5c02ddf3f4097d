package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// dialect captures the differences between the supported SQL backends
type dialect struct {
	name        string
	driverName  string
	placeholder func(n int) string
	quote       func(ident string) string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driverName:  "sqlite",
	placeholder: func(int) string { return "?" },
	quote:       func(ident string) string { return `"` + ident + `"` },
}

// SQLStore implements Store on top of database/sql for any supported dialect
type SQLStore struct {
	db      *sql.DB
	dsn     string
	dialect dialect
}

// NewSQLiteStore creates a store backed by a local SQLite file
func NewSQLiteStore(dbPath string) *SQLStore {
	return &SQLStore{
		dsn:     dbPath,
		dialect: sqliteDialect,
	}
}

// Dialect returns the backend name (sqlite, mysql or postgres)
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Connect opens the database and pings it
func (s *SQLStore) Connect(ctx context.Context) error {
	db, err := sql.Open(s.dialect.driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to %s database: %w", s.dialect.name, err)
	}
	s.db = db
	return nil
}

// CreateTable creates a new table with the given schema if it doesn't exist
func (s *SQLStore) CreateTable(ctx context.Context, schema string) error {
	if s.db == nil {
		return fmt.Errorf("store is not connected")
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertQuery renders the parameterized INSERT statement for table and columns
func (s *SQLStore) InsertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = s.dialect.quote(col)
		placeholders[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.quote(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
}

// BatchInsert inserts multiple records into the specified table
func (s *SQLStore) BatchInsert(ctx context.Context, table string, columns []string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	if s.db == nil {
		return fmt.Errorf("store is not connected")
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns given for insert into %s", table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, s.InsertQuery(table, columns))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, record := range records {
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = record[col]
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DB exposes the underlying handle for queries outside the Store interface
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
