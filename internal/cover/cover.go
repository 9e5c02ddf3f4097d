// Package cover downloads book cover images, stores them as PNG files and
// resizes them to a fixed size, falling back to a substitute image when the
// source cannot be fetched.
package cover

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/fileutil"
	"github.com/lepinkainen/bookseed/internal/ratelimit"
)

// Status reports how a cover request was satisfied.
type Status int

const (
	// StatusDownloaded means the image was fetched, stored and resized.
	StatusDownloaded Status = iota
	// StatusFallback means the configured fallback path was returned.
	StatusFallback
	// StatusUnresolved means there is no image and no fallback.
	StatusUnresolved
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusFallback:
		return "fallback"
	case StatusUnresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Request describes one cover to resolve.
type Request struct {
	URL           string
	Name          string
	SaveDir       string
	Fallback      string
	ResizeInPlace bool
	Width         int
	Height        int
	// TargetName replaces the derived "<name>_cover_image.png" file name.
	TargetName string
}

// Result is the outcome of Resolve. Path is the original (not the resized copy) path.
type Result struct {
	Path        string
	ResizedPath string
	Status      Status
	Attempts    int
}

// Resolver fetches and stores cover images.
type Resolver struct {
	client         *http.Client
	limiter        *ratelimit.Limiter
	attempts       int
	retryDelay     time.Duration
	forceOverwrite bool
	collision      CollisionPolicy
	relativeTo     string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithCollisionPolicy sets the policy used when a target file already exists
// and overwriting is not forced.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(r *Resolver) {
		r.collision = p
	}
}

// WithRelativeTo makes returned paths relative to dir.
func WithRelativeTo(dir string) Option {
	return func(r *Resolver) {
		r.relativeTo = dir
	}
}

// New creates a Resolver from the cover configuration.
func New(cfg config.CoverConfig, opts ...Option) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = config.DefaultFetchAttempts
	}

	r := &Resolver{
		client:         &http.Client{Timeout: timeout},
		limiter:        ratelimit.New("covers", cfg.RequestsPerSecond),
		attempts:       attempts,
		retryDelay:     cfg.RetryDelay,
		forceOverwrite: cfg.ForceOverwrite,
		collision:      SuffixPolicy{},
	}
	if cfg.RelativePaths {
		if wd, err := os.Getwd(); err == nil {
			r.relativeTo = wd
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileName returns the stored file name for an item: spaces become underscores.
func FileName(name string) string {
	return fileutil.SanitizeFilename(name) + "_cover_image.png"
}

// ResizedFileName returns the name of the resized copy kept next to the
// original stored at path.
func ResizedFileName(path string) string {
	return "resized_" + filepath.Base(path)
}

// Resolve fetches req.URL, retrying failed attempts, and stores the image.
// A missing URL with no fallback yields *errors.MissingSourceError. Failed
// downloads are not errors: the result carries StatusFallback or StatusUnresolved.
// Filesystem failures, context cancellation and operator stops are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		if req.Fallback != "" {
			slog.Warn("No cover URL, using fallback", "item", req.Name, "fallback", req.Fallback)
			return Result{Path: req.Fallback, Status: StatusFallback}, nil
		}
		return Result{Status: StatusUnresolved}, errors.NewMissingSourceError(req.Name)
	}

	width, height := req.Width, req.Height
	if width <= 0 {
		width = config.DefaultCoverWidth
	}
	if height <= 0 {
		height = config.DefaultCoverHeight
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			if err := ratelimit.Sleep(ctx, r.retryDelay); err != nil {
				return Result{}, err
			}
		}

		slog.Debug("Fetching cover", "item", req.Name, "url", req.URL, "attempt", attempt)
		data, img, err := r.fetch(ctx, req.URL)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			slog.Warn("Cover fetch failed", "item", req.Name, "attempt", attempt, "error", err)
			continue
		}

		res, err := r.store(req, data, img, width, height)
		if err != nil {
			return Result{}, err
		}
		res.Attempts = attempt
		return res, nil
	}

	if req.Fallback != "" {
		slog.Warn("Could not retrieve cover, using fallback", "item", req.Name, "fallback", req.Fallback)
		return Result{Path: req.Fallback, Status: StatusFallback, Attempts: r.attempts}, nil
	}
	slog.Warn("Could not retrieve cover and no fallback configured", "item", req.Name)
	return Result{Status: StatusUnresolved, Attempts: r.attempts}, nil
}

// fetch downloads url and decodes the body. Any failure consumes one attempt.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, image.Image, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d downloading cover", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cover body: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode cover: %w", err)
	}
	return data, img, nil
}

// store writes the downloaded bytes, then the resized image over them or next to them.
func (r *Resolver) store(req Request, data []byte, img image.Image, width, height int) (Result, error) {
	if err := os.MkdirAll(req.SaveDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create cover directory: %w", err)
	}

	name := FileName(req.Name)
	if req.TargetName != "" {
		name = withPNGExt(fileutil.SanitizeFilename(req.TargetName))
	}
	path, err := filepath.Abs(filepath.Join(req.SaveDir, name))
	if err != nil {
		return Result{}, err
	}

	if !r.forceOverwrite && fileutil.FileExists(path) {
		path, err = r.collision.Resolve(path)
		if err != nil {
			return Result{}, err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write cover file: %w", err)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	res := Result{Status: StatusDownloaded}

	if req.ResizeInPlace {
		if err := imaging.Save(resized, path); err != nil {
			return Result{}, fmt.Errorf("failed to save resized cover: %w", err)
		}
		slog.Info("Saved cover", "item", req.Name, "path", path, "width", width, "height", height)
	} else {
		resizedPath := filepath.Join(filepath.Dir(path), ResizedFileName(path))
		if err := imaging.Save(resized, resizedPath); err != nil {
			return Result{}, fmt.Errorf("failed to save resized cover: %w", err)
		}
		slog.Info("Saved cover", "item", req.Name, "path", path, "resized", resizedPath)
		res.ResizedPath = r.present(resizedPath)
	}

	res.Path = r.present(path)
	return res, nil
}

func (r *Resolver) present(path string) string {
	if r.relativeTo == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(r.relativeTo, path)
	if err != nil {
		return path
	}
	return rel
}

func withPNGExt(name string) string {
	if filepath.Ext(name) == "" {
		return name + ".png"
	}
	return name
}
