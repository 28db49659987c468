package fold

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/shade/region"
)

// Source computes the current fold blocks for a document. The controller
// installs a source that returns nothing while the visibility mode does not
// fold.
type Source func(key region.DocumentKey) []Block

// Provider is the folding-range provider registered with the host. It
// answers range queries from the installed Source and exposes a
// ranges-changed signal plus a consumption handshake: fold commands must
// not be issued until the host has re-queried ranges after the last signal
// (or a fallback delay has elapsed), otherwise the host folds against stale
// ranges.
type Provider struct {
	mu        sync.Mutex
	source    Source
	onChanged []func()
	pending   bool
	consumed  chan struct{}
}

// NewProvider creates a provider with no source; BlocksFor returns nil
// until SetSource is called.
func NewProvider() *Provider {
	ch := make(chan struct{})
	close(ch) // nothing pending yet
	return &Provider{consumed: ch}
}

// SetSource installs the block source.
func (p *Provider) SetSource(src Source) {
	p.mu.Lock()
	p.source = src
	p.mu.Unlock()
}

// OnChanged registers a callback invoked whenever the provided ranges may
// have changed. The host relays this as its ranges-changed event.
func (p *Provider) OnChanged(fn func()) {
	p.mu.Lock()
	p.onChanged = append(p.onChanged, fn)
	p.mu.Unlock()
}

// BlocksFor returns the current fold blocks for the document and records
// that the latest change signal has been consumed.
func (p *Provider) BlocksFor(key region.DocumentKey) []Block {
	p.mu.Lock()
	src := p.source
	if p.pending {
		p.pending = false
		close(p.consumed)
	}
	p.mu.Unlock()
	if src == nil {
		return nil
	}
	return src(key)
}

// NotifyChanged fires the ranges-changed signal and arms the consumption
// handshake for AwaitConsumed.
func (p *Provider) NotifyChanged() {
	p.mu.Lock()
	if !p.pending {
		p.pending = true
		p.consumed = make(chan struct{})
	}
	fns := make([]func(), len(p.onChanged))
	copy(fns, p.onChanged)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AwaitConsumed blocks until the host has queried BlocksFor since the last
// NotifyChanged, the fallback delay elapses, or ctx is done. The fallback
// covers hosts that never re-query (for example when no views are open).
func (p *Provider) AwaitConsumed(ctx context.Context, fallback time.Duration) {
	p.mu.Lock()
	ch := p.consumed
	p.mu.Unlock()

	select {
	case <-ch:
		return
	default:
	}

	timer := time.NewTimer(fallback)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
	}
}
