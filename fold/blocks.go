// Package fold groups hidden lines into foldable blocks and serves them to
// the host's folding-range machinery.
package fold

import (
	"sort"

	"github.com/odvcencio/shade/region"
)

// Block is a maximal run of at least two consecutive hidden lines, eligible
// for editor collapse. EndLine > StartLine always holds.
type Block struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// ComputeBlocks merges the inactive regions with the directive line set and
// returns the foldable blocks, ascending by start line. Lines outside
// [0, lineCount) are dropped. Single-line runs never produce a block.
func ComputeBlocks(lineCount int, directives map[int]bool, inactive region.Set) []Block {
	hidden := make(map[int]bool, len(directives))
	for line := range directives {
		if line >= 0 && line < lineCount {
			hidden[line] = true
		}
	}
	for _, r := range inactive {
		start, end := r.Start.Line, r.End.Line
		if start < 0 {
			start = 0
		}
		if end >= lineCount {
			end = lineCount - 1
		}
		for line := start; line <= end; line++ {
			hidden[line] = true
		}
	}

	lines := make([]int, 0, len(hidden))
	for line := range hidden {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	var blocks []Block
	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}
		if lines[j] > lines[i] {
			blocks = append(blocks, Block{StartLine: lines[i], EndLine: lines[j]})
		}
		i = j + 1
	}
	return blocks
}
