package vectorstore

import (
	"context"
	"sync"
)

// Provisioner serializes one-time collection provisioning. The first caller
// runs the provision function; concurrent callers block and observe that
// attempt's outcome, success or failure. A failed attempt leaves the guard
// unprovisioned so the next call retries.
type Provisioner struct {
	mu      sync.Mutex
	ready   bool
	pending *attempt
}

type attempt struct {
	done chan struct{}
	err  error
}

// Do runs provision at most once concurrently. It returns nil immediately
// once a previous attempt has succeeded.
func (p *Provisioner) Do(ctx context.Context, provision func(context.Context) error) error {
	p.mu.Lock()
	if p.ready {
		p.mu.Unlock()
		return nil
	}
	if a := p.pending; a != nil {
		p.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a := &attempt{done: make(chan struct{})}
	p.pending = a
	p.mu.Unlock()

	err := provision(ctx)

	p.mu.Lock()
	p.ready = err == nil
	p.pending = nil
	p.mu.Unlock()

	a.err = err
	close(a.done)
	return err
}

// Ready reports whether provisioning has completed successfully.
func (p *Provisioner) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}
