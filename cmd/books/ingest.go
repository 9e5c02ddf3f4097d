package books

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/csvutil"
	"github.com/lepinkainen/bookseed/internal/datastore"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/ratelimit"
)

// StoreOpener builds a (not yet connected) Store for the database configuration.
type StoreOpener func(cfg config.DatabaseConfig) (datastore.Store, error)

// Importer runs the offset-resumable CSV to database ingestion.
type Importer struct {
	cfg         *config.Config
	transformer *Transformer
	openStore   StoreOpener
	rowDelay    time.Duration
	newRunID    func() string
}

// ImporterOption customizes an Importer.
type ImporterOption func(*Importer)

// WithStoreOpener replaces datastore.Open.
func WithStoreOpener(open StoreOpener) ImporterOption {
	return func(im *Importer) {
		im.openStore = open
	}
}

// WithRunID fixes the run identifier.
func WithRunID(id string) ImporterOption {
	return func(im *Importer) {
		im.newRunID = func() string { return id }
	}
}

// NewImporter creates an Importer that transforms rows with t.
func NewImporter(cfg *config.Config, t *Transformer, opts ...ImporterOption) *Importer {
	im := &Importer{
		cfg:         cfg,
		transformer: t,
		openStore:   datastore.Open,
		rowDelay:    cfg.RowDelay,
		newRunID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Ingest skips startOffset data rows of filePath, transforms at most
// maxIterations further rows and inserts them in one transaction.
//
// Configuration problems are *errors.ConfigError and are reported before any
// row is read. Database failures are *errors.StorageError; in that case nothing
// is committed and the returned summary's NextOffset equals the start offset.
func (im *Importer) Ingest(ctx context.Context, filePath string, startOffset, maxIterations int) (*Summary, error) {
	if startOffset < 0 {
		startOffset = 0
	}
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}

	summary := newSummary(im.newRunID())
	summary.NextOffset = startOffset
	log := slog.With("run_id", summary.RunID)

	reader, err := openInput(filePath)
	if err != nil {
		return summary, err
	}
	if err := im.cfg.Database.Validate(); err != nil {
		_ = reader.Close()
		return summary, err
	}

	store, err := im.openStore(im.cfg.Database)
	if err != nil {
		_ = reader.Close()
		return summary, errors.WrapConfigError("database.driver", "cannot create store", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close database", "error", err)
		}
	}()

	if err := store.Connect(ctx); err != nil {
		_ = reader.Close()
		return summary, errors.NewStorageError("connect", err)
	}
	log.Info("Connected to database", "driver", im.cfg.Database.Driver)

	table := im.cfg.Database.TableName()
	if im.cfg.Database.CreateTable {
		if err := store.CreateTable(ctx, datastore.BooksSchema(im.cfg.Database.Driver, table)); err != nil {
			_ = reader.Close()
			return summary, errors.NewStorageError("create table", err)
		}
	}

	records, err := im.readRows(ctx, log, reader, summary, startOffset, maxIterations)
	if closeErr := reader.Close(); closeErr != nil {
		log.Warn("Failed to close input", "error", closeErr)
	}
	if err != nil {
		summary.NextOffset = startOffset
		return summary, err
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = rec.Row()
	}

	log.Info("Committing changes to database", "records", len(rows), "table", table)
	if err := store.BatchInsert(ctx, table, datastore.BookColumns, rows); err != nil {
		summary.NextOffset = startOffset
		return summary, errors.NewStorageError("insert", err)
	}
	summary.Inserted = len(rows)

	log.Info("Import finished",
		"operations", summary.Iterations,
		"skipped", summary.Skipped,
		"next_offset", summary.NextOffset,
		"null_images", summary.NullImages.Len(),
		"bad_descriptions", summary.BadDescriptions.Len())

	return summary, nil
}

func openInput(filePath string) (*csvutil.Reader, error) {
	if filePath == "" {
		return nil, errors.NewConfigError("input", "input CSV file is required")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, errors.WrapConfigError("input", "cannot read input file", err)
	}
	if info.IsDir() {
		return nil, errors.NewConfigError("input", filePath+" is a directory")
	}

	reader, err := csvutil.Open(filePath, SourceColumns)
	if err != nil {
		return nil, errors.WrapConfigError("input", "invalid input CSV", err)
	}
	return reader, nil
}

// readRows runs the skip and ingest phases and fills in the summary counters.
func (im *Importer) readRows(ctx context.Context, log *slog.Logger, reader *csvutil.Reader, summary *Summary, startOffset, maxIterations int) ([]Record, error) {
	skipped, err := reader.Skip(startOffset)
	summary.Skipped = skipped
	if err != nil {
		return nil, fmt.Errorf("failed to skip to offset %d: %w", startOffset, err)
	}
	if skipped < startOffset {
		log.Warn("Offset is past the end of the input", "offset", startOffset, "rows", skipped)
	}

	var records []Record
	for summary.Iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input at line %d: %w", reader.Line(), err)
		}

		if summary.Iterations > 0 {
			if err := ratelimit.Sleep(ctx, im.rowDelay); err != nil {
				return nil, err
			}
		}

		log.Info("Beginning write operations", "title", row.Get("title"), "iteration", summary.Iterations+1)
		rec, flags, err := im.transformer.Transform(ctx, row)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
		if flags.ImageFailed {
			summary.NullImages.Add(rec.ISBN13, rec.Title)
		}
		if flags.DescriptionFailed {
			summary.BadDescriptions.Add(rec.ISBN13, rec.Title)
		}
		summary.Iterations++
	}

	summary.NextOffset = summary.Skipped + summary.Iterations
	return records, nil
}
