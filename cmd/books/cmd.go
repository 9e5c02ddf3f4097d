// Package books imports a CSV book catalog into the books table, resolving
// cover images and decoding descriptions along the way.
package books

import (
	"context"
	"io"
	"log/slog"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/cover"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/tui"
	"github.com/lepinkainen/bookseed/internal/watchlist"
)

// Run performs one import with cfg and surfaces the resulting watchlists.
// Interactive mode prompts through the terminal UI for cover name collisions
// and watchlist exports; otherwise the configured defaults apply.
func Run(ctx context.Context, cfg *config.Config, stdout io.Writer) (*Summary, error) {
	var coverOpts []cover.Option
	if cfg.Interactive && !cfg.Covers.ForceOverwrite {
		coverOpts = append(coverOpts, cover.WithCollisionPolicy(cover.PromptPolicy{Prompt: tui.PromptFilename}))
	}

	resolver := cover.New(cfg.Covers, coverOpts...)
	importer := NewImporter(cfg, NewTransformer(resolver, cfg, nil))

	summary, err := importer.Ingest(ctx, cfg.Input, cfg.Offset, cfg.MaxIterations)
	if err != nil {
		return summary, err
	}

	var prompter watchlist.Prompter = watchlist.StaticPrompter{
		Format: cfg.Watchlist.Export,
		Dir:    cfg.Watchlist.Dir,
	}
	if cfg.Interactive {
		prompter = tui.ExportPrompter{Dir: cfg.Watchlist.Dir}
	}

	if err := watchlist.Surface(prompter, stdout, summary.NullImages, summary.BadDescriptions); err != nil {
		if errors.IsStopProcessingError(err) {
			slog.Info("Watchlist export stopped", "reason", err)
			return summary, nil
		}
		return summary, err
	}
	return summary, nil
}
