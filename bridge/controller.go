// Package bridge owns the region-tracking state and orchestrates the
// ordered update sequences that keep decorations, the folding-range
// provider, and actual collapse state consistent with the analysis
// service's notifications.
package bridge

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/odvcencio/shade/decorate"
	"github.com/odvcencio/shade/directive"
	"github.com/odvcencio/shade/document"
	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/region"
	"github.com/odvcencio/shade/visibility"
)

// modeStateKey is the single persisted per-workspace state key.
const modeStateKey = "visibility.mode"

// defaultFoldAckTimeout bounds the wait for the host to re-query folding
// ranges before fold commands are issued.
const defaultFoldAckTimeout = 100 * time.Millisecond

// Options wire a Controller to its collaborators.
type Options struct {
	Editor    host.Editor
	Documents *document.Store
	Settings  host.Settings
	State     host.StateStore
	Logger    *log.Logger
	// FoldAckTimeout overrides the fallback wait before fold commands;
	// zero selects the default.
	FoldAckTimeout time.Duration
}

// Controller is the context object holding all process-wide mutable state:
// the region cache, the current visibility mode, and the live decoration
// style (via the synchronizer). Only the controller mutates them.
//
// Editor commands arrive on the host channel's goroutine and region
// notifications on the analysis client's read goroutine; mu serializes the
// update sequences so one completes before the next begins. The mode is
// stored atomically so folding-range queries can read it mid-sequence,
// which is what lets the consumption handshake resolve while a sequence
// holds mu.
type Controller struct {
	ed         host.Editor
	docs       *document.Store
	settings   host.Settings
	state      host.StateStore
	logger     *log.Logger
	cache      *region.Cache
	provider   *fold.Provider
	sync       *decorate.Synchronizer
	ackTimeout time.Duration

	mu   sync.Mutex
	mode atomic.Int32
}

// New constructs a Controller, restores the persisted mode (falling back to
// the configured default), and installs the folding-range source.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ackTimeout := opts.FoldAckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultFoldAckTimeout
	}

	c := &Controller{
		ed:         opts.Editor,
		docs:       opts.Documents,
		settings:   opts.Settings,
		state:      opts.State,
		logger:     logger,
		cache:      region.NewCache(),
		provider:   fold.NewProvider(),
		ackTimeout: ackTimeout,
	}
	c.sync = decorate.NewSynchronizer(opts.Editor, opts.Documents, c.cache, opts.Settings, c.Mode)

	if persisted, ok := c.state.Get(modeStateKey); ok {
		c.setMode(visibility.Parse(persisted))
	} else {
		c.setMode(visibility.Parse(c.settings.DefaultMode()))
	}
	c.provider.SetSource(c.providedBlocks)
	return c
}

// Mode returns the current visibility mode.
func (c *Controller) Mode() visibility.Mode { return visibility.Mode(c.mode.Load()) }

func (c *Controller) setMode(m visibility.Mode) { c.mode.Store(int32(m)) }

// Provider returns the folding-range provider to register with the host.
func (c *Controller) Provider() *fold.Provider { return c.provider }

// Synchronizer returns the decoration synchronizer.
func (c *Controller) Synchronizer() *decorate.Synchronizer { return c.sync }

// Cache returns the region cache. External components must not write it.
func (c *Controller) Cache() *region.Cache { return c.cache }

// providedBlocks feeds the folding-range provider: empty while the mode is
// Visible, the aggregated blocks otherwise. Called from query goroutines;
// it must not take mu.
func (c *Controller) providedBlocks(key region.DocumentKey) []fold.Block {
	if c.Mode() == visibility.Visible {
		return nil
	}
	return c.blocksFor(key)
}

// blocksFor aggregates the current cache contents with the directive scan,
// independent of mode.
func (c *Controller) blocksFor(key region.DocumentKey) []fold.Block {
	doc, ok := c.docs.Get(key)
	if !ok {
		return nil
	}
	return fold.ComputeBlocks(doc.LineCount(), directive.Scan(doc.Text()), c.cache.Get(key))
}

// eligibleViewsShowing returns the visible views bound to key that the core
// may act on.
func (c *Controller) eligibleViewsShowing(key region.DocumentKey) []host.View {
	var out []host.View
	for _, v := range c.ed.VisibleViews() {
		if v.Key() == key && c.sync.Eligible(v) {
			out = append(out, v)
		}
	}
	return out
}

func startLines(blocks []fold.Block) []int {
	lines := make([]int, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, b.StartLine)
	}
	return lines
}

// Toggle advances the mode one step in cycle order and runs the update
// sequence: unfold (when leaving HiddenFolded, from blocks computed before
// the switch), persist, signal ranges-changed, redecorate every view, then
// auto-fold (when entering HiddenFolded) once the host has consumed the
// signal. Returns the new mode.
func (c *Controller) Toggle(ctx context.Context) visibility.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.Mode()

	// Capture and unfold before the mode flips, so no stale collapsed
	// region remains once suppression is off.
	if old.Folds() {
		for _, v := range c.ed.VisibleViews() {
			if !c.sync.Eligible(v) {
				continue
			}
			blocks := c.blocksFor(v.Key())
			if len(blocks) == 0 {
				continue
			}
			if err := c.ed.Unfold(v, startLines(blocks)); err != nil {
				c.logger.Debug("unfold failed", "view", v.ID, "err", err)
			}
		}
	}

	mode := old.Next()
	c.setMode(mode)
	if err := c.state.Set(modeStateKey, mode.String()); err != nil {
		c.logger.Warn("persisting mode failed", "mode", mode, "err", err)
	}
	c.logger.Info("visibility mode changed", "from", old, "to", mode)

	c.provider.NotifyChanged()
	if err := c.sync.RefreshAll(); err != nil {
		c.logger.Debug("decoration refresh failed", "err", err)
	}

	if mode.Folds() {
		c.provider.AwaitConsumed(ctx, c.ackTimeout)
		for _, v := range c.ed.VisibleViews() {
			if !c.sync.Eligible(v) {
				continue
			}
			blocks := c.blocksFor(v.Key())
			if len(blocks) == 0 {
				continue
			}
			if err := c.ed.Fold(v, startLines(blocks)); err != nil {
				c.logger.Debug("fold failed", "view", v.ID, "err", err)
			}
		}
	}
	return mode
}

// resync is the shared per-document update sequence: unfold the blocks
// computed from the state before swap runs, apply swap, signal
// ranges-changed, redecorate the views, then fold the new blocks once the
// host has consumed the signal. Caller holds mu.
func (c *Controller) resync(ctx context.Context, key region.DocumentKey, views []host.View, swap func()) {
	folds := c.Mode().Folds()

	// Fold ranges must not outlive the data that produced them.
	if folds {
		if blocks := c.blocksFor(key); len(blocks) > 0 {
			lines := startLines(blocks)
			for _, v := range views {
				if err := c.ed.Unfold(v, lines); err != nil {
					c.logger.Debug("unfold failed", "view", v.ID, "err", err)
				}
			}
		}
	}

	swap()
	c.provider.NotifyChanged()

	for _, v := range views {
		if err := c.sync.ApplyTo(v); err != nil {
			c.logger.Debug("decoration apply failed", "view", v.ID, "err", err)
		}
	}

	if folds && len(views) > 0 {
		c.provider.AwaitConsumed(ctx, c.ackTimeout)
		if blocks := c.blocksFor(key); len(blocks) > 0 {
			lines := startLines(blocks)
			for _, v := range views {
				if err := c.ed.Fold(v, lines); err != nil {
					c.logger.Debug("fold failed", "view", v.ID, "err", err)
				}
			}
		}
	}
}

// HandleRegions processes an inactive-regions notification for the
// document at path: unfold against the old cache, replace the cache entry,
// signal ranges-changed, redecorate, and re-fold against the new cache. A
// document with no visible views only updates the cache.
func (c *Controller) HandleRegions(ctx context.Context, path string, regions region.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := region.KeyFor(path)
	views := c.eligibleViewsShowing(key)
	c.logger.Debug("inactive regions received",
		"key", string(key), "regions", len(regions), "views", len(views))

	c.resync(ctx, key, views, func() { c.cache.Update(key, regions) })
}

// HandleTextChange applies an edit to the mirrored document at path.
// Directive lines may have moved, so the sequence matches HandleRegions:
// the old blocks are unfolded before the mirror text flips, every view of
// the document is redecorated, and the new blocks are folded.
func (c *Controller) HandleTextChange(ctx context.Context, path, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := region.KeyFor(path)
	views := c.eligibleViewsShowing(key)

	c.resync(ctx, key, views, func() { c.docs.SetText(key, text) })
}

// HandleActiveViewChange redecorates after the focused view switched.
func (c *Controller) HandleActiveViewChange(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sync.RefreshAll(); err != nil {
		c.logger.Debug("decoration refresh failed", "err", err)
	}
}

// HandleConfigChange re-derives the style (the opacity may have changed)
// and redecorates everything.
func (c *Controller) HandleConfigChange(ctx context.Context) {
	c.logger.Debug("configuration changed")
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sync.RefreshAll(); err != nil {
		c.logger.Debug("decoration refresh failed", "err", err)
	}
}

// Teardown clears the region cache and disposes the live decoration style.
// The mode itself needs no write here; it was persisted on every toggle.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
	c.sync.Dispose()
}
