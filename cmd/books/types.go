package books

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookseed/internal/cmdutil"
	"github.com/lepinkainen/bookseed/internal/watchlist"
)

// SourceColumns are the catalog CSV columns the importer reads. Other columns are ignored.
var SourceColumns = []string{
	"isbn13",
	"isbn10",
	"title",
	"authors",
	"thumbnail",
	"description",
	"average_rating",
	"published_year",
}

// UnknownAuthor replaces an empty authors column.
const UnknownAuthor = "Unknown Author"

// Record is one normalized row destined for the books table.
// AverageRating and PublishedYear keep the raw CSV strings.
type Record struct {
	ISBN13            string  `json:"isbn13" db:"isbn13"`
	ISBN10            string  `json:"isbn10" db:"isbn10"`
	Title             string  `json:"title" db:"title"`
	Author            string  `json:"author" db:"author"`
	ImagePath         *string `json:"image_path" db:"image_url"`
	Description       string  `json:"description" db:"description"`
	AverageRating     string  `json:"average_rating" db:"rating"`
	PublishedYear     string  `json:"published_year" db:"published_year"`
	InventoryQuantity int     `json:"inventory_quantity" db:"inventory_quantity"`
}

// Row converts the record to column values. Rating and year are parsed to
// numbers; empty values become nil (NULL), and unparseable ones are logged
// before being stored as NULL.
func (r Record) Row() map[string]any {
	row := cmdutil.StructToMap(r, cmdutil.StructToMapOptions{})
	row["rating"] = r.numeric("rating", r.AverageRating, parseRating)
	row["published_year"] = r.numeric("published_year", r.PublishedYear, parseYear)
	return row
}

func (r Record) numeric(column, raw string, parse func(string) any) any {
	v := parse(raw)
	if v == nil && strings.TrimSpace(raw) != "" {
		slog.Warn("Storing unparseable value as NULL", "isbn13", r.ISBN13, "column", column, "value", raw)
	}
	return v
}

// maxYear bounds published_year so the float conversion stays exact.
const maxYear = 9999

func parseRating(s string) any {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// parseYear accepts "2004" and "2004.0" within [-9999, 9999].
func parseYear(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < -maxYear || n > maxYear {
			return nil
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > maxYear || f != math.Trunc(f) {
		return nil
	}
	return int(f)
}

// Flags reports the row-local degradations of one transform.
type Flags struct {
	ImageFailed       bool
	DescriptionFailed bool
}

// Summary describes a finished (or aborted) ingestion run.
type Summary struct {
	RunID string
	// Iterations is the number of rows transformed.
	Iterations int
	// Skipped is the number of rows skipped to reach the start offset.
	Skipped int
	// NextOffset is where a follow-up run should start.
	NextOffset int
	// Inserted is the number of committed rows.
	Inserted int

	NullImages      *watchlist.Watchlist
	BadDescriptions *watchlist.Watchlist
}

func newSummary(runID string) *Summary {
	return &Summary{
		RunID:           runID,
		NullImages:      watchlist.New(watchlist.NullImages),
		BadDescriptions: watchlist.New(watchlist.BadDescriptions),
	}
}
