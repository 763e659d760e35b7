// Package observable implements the small reactive primitives the binding
// layer needs: value observables, observable arrays with ordered change
// records, and the array diff that produces those records.
package observable

import (
	"sync"

	"github.com/livefir/livebind/internal/identity"
)

// Subscription detaches a listener when disposed.
type Subscription struct {
	once    sync.Once
	dispose func()
}

func newSubscription(dispose func()) *Subscription {
	return &Subscription{dispose: dispose}
}

// Dispose removes the listener. Calling it more than once is harmless.
func (s *Subscription) Dispose() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.dispose != nil {
			s.dispose()
		}
	})
}

// listeners is an ordered set of callbacks keyed by registration id.
type listeners[F any] struct {
	nextID int
	ids    []int
	fns    map[int]F
}

func (l *listeners[F]) add(fn F) int {
	if l.fns == nil {
		l.fns = make(map[int]F)
	}
	l.nextID++
	id := l.nextID
	l.ids = append(l.ids, id)
	l.fns[id] = fn
	return id
}

func (l *listeners[F]) remove(id int) {
	if _, ok := l.fns[id]; !ok {
		return
	}
	delete(l.fns, id)
	for i, existing := range l.ids {
		if existing == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
}

// snapshot returns the callbacks registered right now, so listeners that
// unsubscribe during notification do not disturb the iteration.
func (l *listeners[F]) snapshot() []F {
	out := make([]F, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.fns[id])
	}
	return out
}

func (l *listeners[F]) len() int { return len(l.ids) }

// Observable holds a value and notifies subscribers when it changes.
type Observable[T any] struct {
	value T
	subs  listeners[func(T)]
}

// New creates an observable holding initial.
func New[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	return o.value
}

// Peek is Get; kept for symmetry with dependency-tracking readers.
func (o *Observable[T]) Peek() T {
	return o.value
}

// Set stores v and notifies subscribers unless v is the same as the current
// value.
func (o *Observable[T]) Set(v T) {
	if identity.Same(any(o.value), any(v)) {
		return
	}
	o.value = v
	for _, fn := range o.subs.snapshot() {
		fn(v)
	}
}

// Subscribe registers fn to receive every new value.
func (o *Observable[T]) Subscribe(fn func(T)) *Subscription {
	id := o.subs.add(fn)
	return newSubscription(func() { o.subs.remove(id) })
}

// SubscriberCount returns the number of live subscriptions.
func (o *Observable[T]) SubscriberCount() int {
	return o.subs.len()
}
