// Package document mirrors the host editor's open documents as line-indexed
// text, queried synchronously by the scanner and the folding aggregator.
package document

import (
	"strings"
	"sync"

	"github.com/odvcencio/shade/region"
)

// Document is the mirrored content of one open document.
type Document struct {
	path     string
	language string
	text     string
	lines    []string
}

// New creates a document mirror for the given path, language identifier,
// and initial text.
func New(path, language, text string) *Document {
	d := &Document{path: path, language: language}
	d.setText(text)
	return d
}

func (d *Document) setText(text string) {
	d.text = text
	d.lines = strings.Split(text, "\n")
}

// Key returns the normalized document key.
func (d *Document) Key() region.DocumentKey { return region.KeyFor(d.path) }

// Path returns the document's file path as reported by the host.
func (d *Document) Path() string { return d.path }

// Language returns the host-declared language identifier.
func (d *Document) Language() string { return d.language }

// Text returns the full document text.
func (d *Document) Text() string { return d.text }

// LineCount returns the number of lines.
func (d *Document) LineCount() int { return len(d.lines) }

// Line returns the text of line i, or "" when i is out of range.
func (d *Document) Line(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return d.lines[i]
}

// Store keeps the mirrored documents by key.
type Store struct {
	mu   sync.RWMutex
	docs map[region.DocumentKey]*Document
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[region.DocumentKey]*Document)}
}

// Open mirrors a document, replacing any previous mirror for the same key.
func (s *Store) Open(path, language, text string) *Document {
	d := New(path, language, text)
	s.mu.Lock()
	s.docs[d.Key()] = d
	s.mu.Unlock()
	return d
}

// Get returns the document for key.
func (s *Store) Get(key region.DocumentKey) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[key]
	return d, ok
}

// SetText replaces the text of the document for key. Returns false when the
// document is not mirrored.
func (s *Store) SetText(key region.DocumentKey, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[key]
	if !ok {
		return false
	}
	d.setText(text)
	return true
}

// Close drops the mirror for key.
func (s *Store) Close(key region.DocumentKey) {
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
}
