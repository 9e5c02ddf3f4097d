package cover

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/bookseed/internal/fileutil"
)

// OverwriteAnswer is the prompt answer that keeps the existing path.
const OverwriteAnswer = "overwrite"

const defaultMaxPrompts = 3

// CollisionPolicy picks the path to write when a cover file already exists.
type CollisionPolicy interface {
	Resolve(existing string) (string, error)
}

// SuffixPolicy appends _1, _2, ... to the file stem until the name is free.
type SuffixPolicy struct{}

// Resolve returns the first free suffixed path.
func (SuffixPolicy) Resolve(existing string) (string, error) {
	return fileutil.UniquePath(existing), nil
}

// OverwritePolicy always reuses the existing path.
type OverwritePolicy struct{}

// Resolve returns existing unchanged.
func (OverwritePolicy) Resolve(existing string) (string, error) {
	return existing, nil
}

// PromptFunc asks the operator for a replacement file name for existing.
type PromptFunc func(existing string) (string, error)

// PromptPolicy asks the operator for a new name. The answer "overwrite" keeps
// the existing path. After MaxPrompts unusable answers it falls back to a suffix.
type PromptPolicy struct {
	Prompt     PromptFunc
	MaxPrompts int
}

// Resolve asks until it gets a free name, "overwrite", or runs out of prompts.
func (p PromptPolicy) Resolve(existing string) (string, error) {
	limit := p.MaxPrompts
	if limit <= 0 {
		limit = defaultMaxPrompts
	}

	dir := filepath.Dir(existing)
	current := existing
	for i := 0; i < limit; i++ {
		answer, err := p.Prompt(current)
		if err != nil {
			return "", err
		}

		answer = strings.TrimSpace(answer)
		if strings.EqualFold(answer, OverwriteAnswer) {
			return current, nil
		}
		if answer == "" {
			continue
		}

		current = filepath.Join(dir, withPNGExt(fileutil.SanitizeFilename(answer)))
		if !fileutil.FileExists(current) {
			return current, nil
		}
	}

	unique := fileutil.UniquePath(existing)
	slog.Warn("No usable file name given, using suffixed name", "path", unique)
	return unique, nil
}
