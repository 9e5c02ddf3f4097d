package datastore

import (
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lepinkainen/bookseed/internal/config"
)

const defaultMySQLPort = 3306

var mysqlDialect = dialect{
	name:        "mysql",
	driverName:  "mysql",
	placeholder: func(int) string { return "?" },
	quote:       func(ident string) string { return "`" + ident + "`" },
}

// NewMySQLStore creates a store for a MySQL/MariaDB server
func NewMySQLStore(cfg config.DatabaseConfig) *SQLStore {
	return &SQLStore{
		dsn:     MySQLDSN(cfg),
		dialect: mysqlDialect,
	}
}

// MySQLDSN formats the connection string for the go-sql-driver
func MySQLDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%s", cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Name
	mc.Params = map[string]string{
		"charset": "utf8mb4",
	}
	return mc.FormatDSN()
}
