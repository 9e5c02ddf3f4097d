package books

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/cover"
	"github.com/lepinkainen/bookseed/internal/csvutil"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/textdecode"
)

// CoverResolver resolves a cover request to a stored image path.
type CoverResolver interface {
	Resolve(ctx context.Context, req cover.Request) (cover.Result, error)
}

// Rand is the random source used for inventory quantities. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Transformer maps raw CSV rows to Records.
type Transformer struct {
	covers    CoverResolver
	coverCfg  config.CoverConfig
	inventory config.InventoryConfig
	rng       Rand
}

// NewTransformer creates a Transformer. A nil rng uses the global math/rand source.
func NewTransformer(covers CoverResolver, cfg *config.Config, rng Rand) *Transformer {
	if rng == nil {
		rng = globalRand{}
	}
	return &Transformer{
		covers:    covers,
		coverCfg:  cfg.Covers,
		inventory: cfg.Inventory,
		rng:       rng,
	}
}

// Transform converts one row. Image and description problems degrade the
// record and are reported in Flags. The error is non-nil only when processing
// must stop: context cancellation or an operator stop at a prompt.
func (t *Transformer) Transform(ctx context.Context, row csvutil.Row) (Record, Flags, error) {
	var flags Flags
	title := row.Get("title")

	rec := Record{
		ISBN13:            row.Get("isbn13"),
		ISBN10:            row.Get("isbn10"),
		Title:             title,
		Author:            firstAuthor(row.Get("authors")),
		AverageRating:     row.Get("average_rating"),
		PublishedYear:     row.Get("published_year"),
		InventoryQuantity: t.quantity(),
	}

	res, err := t.covers.Resolve(ctx, cover.Request{
		URL:           strings.TrimSpace(row.Get("thumbnail")),
		Name:          title,
		SaveDir:       t.coverCfg.Dir,
		Fallback:      t.coverCfg.Fallback,
		ResizeInPlace: t.coverCfg.ResizeInPlace,
		Width:         t.coverCfg.Width,
		Height:        t.coverCfg.Height,
	})
	switch {
	case err != nil && (errors.IsStopProcessingError(err) || ctx.Err() != nil):
		return Record{}, Flags{}, err
	case err != nil:
		if !errors.IsMissingSourceError(err) {
			slog.Warn("Cover resolution failed", "isbn13", rec.ISBN13, "title", title, "error", err)
		} else {
			slog.Warn("No image for book", "isbn13", rec.ISBN13, "title", title)
		}
		flags.ImageFailed = true
	case res.Status == cover.StatusUnresolved || res.Path == "":
		slog.Warn("No image for book", "isbn13", rec.ISBN13, "title", title)
		flags.ImageFailed = true
	default:
		path := res.Path
		rec.ImagePath = &path
	}

	desc := textdecode.Decode(row.Get("description"))
	rec.Description = desc.Text
	if desc.Degraded() {
		slog.Warn("Could not decode description, keeping raw text", "isbn13", rec.ISBN13, "title", title)
		flags.DescriptionFailed = true
	}

	return rec, flags, nil
}

// quantity returns a uniform integer in [Min, Max].
func (t *Transformer) quantity() int {
	lo, hi := t.inventory.Min, t.inventory.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + t.rng.IntN(hi-lo+1)
}

func firstAuthor(authors string) string {
	first, _, _ := strings.Cut(authors, ";")
	first = strings.TrimSpace(first)
	if first == "" {
		return UnknownAuthor
	}
	return first
}
