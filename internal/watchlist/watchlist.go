// Package watchlist collects books that need manual attention after an import
// run and exports them for review.
package watchlist

import (
	"bytes"
	"encoding/json"
)

// Well-known watchlist names.
const (
	NullImages      = "null_images"
	BadDescriptions = "bad_descriptions"
)

// Entry is one watchlisted book.
type Entry struct {
	ISBN13 string `json:"isbn13" yaml:"isbn13"`
	Title  string `json:"title" yaml:"title"`
}

// Watchlist is an insertion-ordered mapping of isbn13 to title.
// Adding an existing isbn13 updates its title in place.
type Watchlist struct {
	name    string
	entries []Entry
	index   map[string]int
}

// New creates an empty watchlist.
func New(name string) *Watchlist {
	return &Watchlist{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns the watchlist name.
func (w *Watchlist) Name() string {
	return w.name
}

// Add records isbn13 with its title.
func (w *Watchlist) Add(isbn13, title string) {
	if i, ok := w.index[isbn13]; ok {
		w.entries[i].Title = title
		return
	}
	w.index[isbn13] = len(w.entries)
	w.entries = append(w.entries, Entry{ISBN13: isbn13, Title: title})
}

// Len returns the number of entries.
func (w *Watchlist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

// Entries returns a copy of the entries in insertion order.
func (w *Watchlist) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Map returns the entries as a plain map.
func (w *Watchlist) Map() map[string]string {
	m := make(map[string]string, len(w.entries))
	for _, e := range w.entries {
		m[e.ISBN13] = e.Title
	}
	return m
}

// Reset removes all entries.
func (w *Watchlist) Reset() {
	w.entries = nil
	w.index = make(map[string]int)
}

// MarshalJSON encodes the watchlist as a JSON object keyed by isbn13, in insertion order.
func (w *Watchlist) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range w.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ISBN13)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Title)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
