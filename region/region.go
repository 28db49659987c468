// Package region holds the position/region data model and the per-document
// cache of inactive regions reported by the analysis service.
package region

import (
	"path/filepath"
	"strings"
)

// Position is a zero-based (line, character) offset into a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p orders strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Region is a span between two positions, start ≤ end. It represents
// either an inactive block reported by the analysis service or a single
// directive line (a degenerate one-line region).
type Region struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Line returns a degenerate region covering the given line.
func Line(line int) Region {
	return Region{Start: Position{Line: line}, End: Position{Line: line}}
}

// Set is the region list for one document. Order is insertion order;
// overlaps and duplicates are resolved downstream.
type Set []Region

// DocumentKey identifies a document independent of how many views display
// it: a case-normalized absolute slash path.
type DocumentKey string

// KeyFor normalizes a file path into a DocumentKey.
func KeyFor(path string) DocumentKey {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return DocumentKey(strings.ToLower(filepath.ToSlash(abs)))
}
