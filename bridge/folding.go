package bridge

import (
	"context"
	"sort"

	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/region"
)

// FoldingSource yields folding ranges for a document. The analysis client
// implements it with the service's own structural folding.
type FoldingSource interface {
	FoldingRanges(ctx context.Context, path string) ([]fold.Block, error)
}

// MergedFolding decorates a FoldingSource with shade's aggregated blocks.
// It is composed once at startup; while the mode is Visible the provider
// yields nothing, so the service's output passes through unchanged.
type MergedFolding struct {
	base     FoldingSource
	provider *fold.Provider
}

// NewMergedFolding wraps base with the provider's blocks.
func NewMergedFolding(base FoldingSource, provider *fold.Provider) *MergedFolding {
	return &MergedFolding{base: base, provider: provider}
}

// FoldingRanges returns the service's ranges merged with shade's blocks,
// deduplicated and sorted by start line. Service errors degrade to shade's
// blocks alone.
func (m *MergedFolding) FoldingRanges(ctx context.Context, path string) ([]fold.Block, error) {
	var blocks []fold.Block
	if m.base != nil {
		base, err := m.base.FoldingRanges(ctx, path)
		if err == nil {
			blocks = append(blocks, base...)
		}
	}
	blocks = append(blocks, m.provider.BlocksFor(region.KeyFor(path))...)

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].StartLine != blocks[j].StartLine {
			return blocks[i].StartLine < blocks[j].StartLine
		}
		return blocks[i].EndLine < blocks[j].EndLine
	})
	out := blocks[:0]
	var last fold.Block
	for i, b := range blocks {
		if i > 0 && b == last {
			continue
		}
		out = append(out, b)
		last = b
	}
	return out, nil
}
