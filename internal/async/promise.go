// Package async provides the completion signal used by binding application
// and removal hooks. A nil *Promise always means "already done".
package async

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Promise is a one-shot completion signal carrying an optional error.
type Promise struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	err       error
	callbacks []func(error)
}

// New returns an unsettled promise.
func New() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolved returns a promise that has already succeeded.
func Resolved() *Promise {
	p := New()
	p.Resolve()
	return p
}

// Rejected returns a promise that has already failed with err.
func Rejected(err error) *Promise {
	p := New()
	p.Reject(err)
	return p
}

// Resolve settles the promise successfully. Callbacks run on the calling
// goroutine. Settling twice is a no-op.
func (p *Promise) Resolve() {
	p.settle(nil)
}

// Reject settles the promise with err.
func (p *Promise) Reject(err error) {
	p.settle(err)
}

func (p *Promise) settle(err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
}

// Then registers fn to run once the promise settles. If it already has, fn
// runs immediately. A nil promise runs fn immediately with a nil error.
func (p *Promise) Then(fn func(error)) {
	if p == nil {
		fn(nil)
		return
	}
	p.mu.Lock()
	if p.settled {
		err := p.err
		p.mu.Unlock()
		fn(err)
		return
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// Done is closed when the promise settles.
func (p *Promise) Done() <-chan struct{} {
	if p == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

// Settled reports whether the promise has settled.
func (p *Promise) Settled() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Err returns the rejection error, or nil while pending or after success.
func (p *Promise) Err() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the promise settles or ctx is done.
func (p *Promise) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns a promise that settles once every given promise has settled.
// Rejections are combined; nil entries count as already resolved. When no
// pending promise remains, All returns nil.
func All(promises ...*Promise) *Promise {
	var pending []*Promise
	var errs error
	for _, p := range promises {
		if p == nil {
			continue
		}
		if p.Settled() {
			errs = multierr.Append(errs, p.Err())
			continue
		}
		pending = append(pending, p)
	}
	if len(pending) == 0 {
		if errs != nil {
			return Rejected(errs)
		}
		return nil
	}

	all := New()
	var mu sync.Mutex
	remaining := len(pending)
	for _, p := range pending {
		p.Then(func(err error) {
			mu.Lock()
			errs = multierr.Append(errs, err)
			remaining--
			finished := remaining == 0
			combined := errs
			mu.Unlock()
			if finished {
				all.settle(combined)
			}
		})
	}
	return all
}

// WaitAll blocks until every promise settles, returning the first error.
func WaitAll(ctx context.Context, promises ...*Promise) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range promises {
		if p == nil {
			continue
		}
		g.Go(func() error {
			return p.Wait(ctx)
		})
	}
	return g.Wait()
}
