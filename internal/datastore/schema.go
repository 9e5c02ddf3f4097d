package datastore

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/bookseed/internal/config"
)

// BookColumns is the insert column order for the books table
var BookColumns = []string{
	"isbn13",
	"isbn10",
	"title",
	"author",
	"image_url",
	"description",
	"rating",
	"published_year",
	"inventory_quantity",
}

// BooksSchema returns an idempotent CREATE TABLE statement for the driver
func BooksSchema(driver, table string) string {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	text := "TEXT"
	q := func(s string) string { return `"` + s + `"` }

	switch strings.ToLower(driver) {
	case config.DriverMySQL:
		id = "id INT AUTO_INCREMENT PRIMARY KEY"
		q = func(s string) string { return "`" + s + "`" }
	case config.DriverPostgres:
		id = "id SERIAL PRIMARY KEY"
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	%s VARCHAR(13) NOT NULL,
	%s VARCHAR(10),
	%s %s NOT NULL,
	%s %s,
	%s %s,
	%s %s,
	%s DOUBLE PRECISION,
	%s INTEGER,
	%s INTEGER NOT NULL
)`,
		q(table), id,
		q("isbn13"),
		q("isbn10"),
		q("title"), text,
		q("author"), text,
		q("image_url"), text,
		q("description"), text,
		q("rating"),
		q("published_year"),
		q("inventory_quantity"),
	)
}
