// Package csvutil reads header-keyed CSV catalogs one row at a time.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row maps column name to the raw string value of one CSV record.
type Row map[string]string

// Get returns the value of column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return r[column]
}

// MissingColumnsError reports required columns absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV header is missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ErrEmptyFile is returned when the CSV file has no content.
var ErrEmptyFile = errors.New("CSV file is empty")

// Reader streams records from a CSV file as Rows keyed by the header.
type Reader struct {
	file   *os.File
	reader *csv.Reader
	header []string
	line   int
}

// Open opens filename, reads its header and verifies that every required column is present.
func Open(filename string, required []string) (*Reader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	if fi, err := f.Stat(); err != nil || fi.Size() == 0 {
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to stat CSV file: %w", err)
		}
		return nil, ErrEmptyFile
	}

	r, err := NewReader(f, required)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader wraps an io.Reader. The caller keeps ownership of src.
func NewReader(src io.Reader, required []string) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	return &Reader{reader: cr, header: header, line: 1}, nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Header returns the column names in file order.
func (r *Reader) Header() []string {
	return r.header
}

// Line returns the number of the last line read, counting the header as line 1.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next data row. It returns io.EOF when the file is exhausted.
// Bare quotes inside unquoted fields are kept as literal characters.
func (r *Reader) Next() (Row, error) {
	record, err := r.reader.Read()
	if err != nil {
		if err != io.EOF {
			r.line++
		}
		return nil, err
	}
	r.line++

	row := make(Row, len(r.header))
	for i, col := range r.header {
		if i < len(record) {
			row[col] = record[i]
		} else {
			row[col] = ""
		}
	}
	return row, nil
}

// Skip discards up to n data rows and returns how many were actually skipped.
func (r *Reader) Skip(n int) (int, error) {
	skipped := 0
	for skipped < n {
		_, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return skipped, err
		}
		r.line++
		skipped++
	}
	return skipped, nil
}

// Close closes the underlying file when the Reader owns one.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
