package livebind

import (
	"errors"
	"fmt"

	"github.com/livefir/livebind/internal/dom"
)

var (
	// ErrNotNodes is returned when the insertion primitive receives neither a
	// node nor a node slice.
	ErrNotNodes = dom.ErrNotNodes
	// ErrDisposed is returned when operating on a disposed ForEach.
	ErrDisposed = errors.New("foreach disposed")
	// ErrTemplateNotFound is returned when WithName names no element.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrInvalidBinding is returned for a binding value that is neither an
	// array nor an options map.
	ErrInvalidBinding = errors.New("invalid foreach binding")
)

// HookError wraps a failure raised by a user hook.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// report routes err to the configured error handler.
func (f *ForEach) report(err error) {
	if err == nil {
		return
	}
	f.config.ErrorHandler(fmt.Errorf("foreach %s: %w", f.id, err))
}

// callHook runs fn, turning a panic into a HookError on the error handler so
// the flush continues with consistent bookkeeping.
func (f *ForEach) callHook(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if f.config.Metrics != nil {
				f.config.Metrics.IncrementHookError()
			}
			err, isErr := r.(error)
			if !isErr {
				err = fmt.Errorf("panic: %v", r)
			}
			f.report(&HookError{Hook: name, Err: err})
		}
	}()
	fn()
	return true
}
