package watchlist

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/fileutil"
	"gopkg.in/yaml.v3"
)

// Choice is an export decision for one watchlist. An empty Path means the
// default location for the format (stdout for JSON).
type Choice struct {
	Format string
	Path   string
}

// Skip reports whether nothing should be exported.
func (c Choice) Skip() bool {
	return c.Format == "" || c.Format == config.ExportNone
}

// Prompter decides how a watchlist should be exported.
type Prompter interface {
	Choose(w *Watchlist) (Choice, error)
}

// StaticPrompter returns the same format for every watchlist without asking.
type StaticPrompter struct {
	Format string
	Dir    string
}

// Choose implements Prompter.
func (p StaticPrompter) Choose(w *Watchlist) (Choice, error) {
	c := Choice{Format: p.Format}
	if !c.Skip() && p.Format != config.ExportJSON {
		c.Path = DefaultPath(p.Dir, w.Name(), p.Format)
	}
	return c, nil
}

// DefaultPath returns "<dir>/<name>_watchlist.<ext>" for file formats.
func DefaultPath(dir, name, format string) string {
	if name == "" {
		name = "items"
	}
	ext := "txt"
	switch format {
	case config.ExportYAML:
		ext = "yaml"
	case config.ExportJSON:
		ext = "json"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_watchlist.%s", name, ext))
}

// WriteText writes one "Isbn: <isbn13> | Title: <title>" line per entry.
func WriteText(out io.Writer, w *Watchlist) error {
	for _, e := range w.entries {
		if _, err := fmt.Fprintf(out, "Isbn: %s | Title: %s\n", e.ISBN13, e.Title); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the watchlist as an indented JSON object.
func WriteJSON(out io.Writer, w *Watchlist) error {
	data, err := json.MarshalIndent(w, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist: %w", err)
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}

// WriteYAML writes the watchlist as an ordered YAML mapping.
func WriteYAML(out io.Writer, w *Watchlist) error {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range w.entries {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ISBN13},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Title},
		)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("failed to encode watchlist: %w", err)
	}
	return enc.Close()
}

// ReadYAML loads a watchlist previously written by WriteYAML.
func ReadYAML(in io.Reader, name string) (*Watchlist, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(in).Decode(&node); err != nil {
		if err == io.EOF {
			return New(name), nil
		}
		return nil, fmt.Errorf("failed to decode watchlist: %w", err)
	}

	w := New(name)
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("watchlist YAML must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		w.Add(root.Content[i].Value, root.Content[i+1].Value)
	}
	return w, nil
}

// Export writes w according to c. JSON without a path goes to stdout.
// Files are always overwritten.
func Export(w *Watchlist, c Choice, stdout io.Writer) error {
	if c.Skip() {
		return nil
	}

	var write func(io.Writer, *Watchlist) error
	switch c.Format {
	case config.ExportJSON:
		if c.Path == "" {
			return WriteJSON(stdout, w)
		}
		_, err := fileutil.WriteJSONFile(w, c.Path, true)
		return err
	case config.ExportText:
		write = WriteText
	case config.ExportYAML:
		write = WriteYAML
	default:
		return fmt.Errorf("unknown watchlist format %q", c.Format)
	}

	path := c.Path
	if path == "" {
		path = DefaultPath(".", w.Name(), c.Format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create watchlist directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create watchlist file: %w", err)
	}
	if err := write(f, w); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("Finished writing watchlist", "watchlist", w.Name(), "path", path, "entries", w.Len())
	return nil
}

// Surface asks p about every non-empty watchlist and exports it.
func Surface(p Prompter, stdout io.Writer, lists ...*Watchlist) error {
	for _, w := range lists {
		if w.Len() == 0 {
			continue
		}
		slog.Info("Watchlist has entries", "watchlist", w.Name(), "entries", w.Len())

		choice, err := p.Choose(w)
		if err != nil {
			return err
		}
		if err := Export(w, choice, stdout); err != nil {
			return fmt.Errorf("failed to export %s: %w", w.Name(), err)
		}
	}
	return nil
}
