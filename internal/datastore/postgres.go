package datastore

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lepinkainen/bookseed/internal/config"
)

const defaultPostgresPort = 5432

var postgresDialect = dialect{
	name:        "postgres",
	driverName:  "pgx",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	quote:       func(ident string) string { return `"` + ident + `"` },
}

// NewPostgresStore creates a store for a PostgreSQL server using the pgx stdlib driver
func NewPostgresStore(cfg config.DatabaseConfig) *SQLStore {
	return &SQLStore{
		dsn:     PostgresDSN(cfg),
		dialect: postgresDialect,
	}
}

// PostgresDSN formats a postgres:// URL for pgx
func PostgresDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

