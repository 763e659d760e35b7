package observable

import (
	"slices"

	"github.com/livefir/livebind/internal/identity"
	"github.com/livefir/livebind/internal/schedule"
)

// ArrayLike is the type-erased view of an observable array consumed by the
// binding layer.
type ArrayLike interface {
	Items() []any
	Len() int
	SubscribeArrayChange(fn func([]Record)) *Subscription
}

// ArrayOption configures an Array.
type ArrayOption func(*arrayConfig)

type arrayConfig struct {
	deferred schedule.Scheduler
}

// WithDeferred coalesces every mutation made before s runs the notification
// into a single change set computed by diffing the snapshot taken at the first
// mutation against the current contents.
func WithDeferred(s schedule.Scheduler) ArrayOption {
	return func(c *arrayConfig) {
		c.deferred = s
	}
}

// Array is an observable slice that reports mutations as ordered change
// records on its arrayChange channel.
type Array[T any] struct {
	items  []T
	subs   listeners[func([]Record)]
	config arrayConfig

	// deferred bookkeeping
	pending   bool
	scheduled bool
	snapshot  []any
}

// NewArray creates an array holding a copy of items.
func NewArray[T any](items []T, opts ...ArrayOption) *Array[T] {
	a := &Array[T]{items: slices.Clone(items)}
	for _, opt := range opts {
		opt(&a.config)
	}
	return a
}

// Values returns a copy of the current contents.
func (a *Array[T]) Values() []T {
	return slices.Clone(a.items)
}

// Items returns the current contents as []any.
func (a *Array[T]) Items() []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = v
	}
	return out
}

// Len returns the number of items.
func (a *Array[T]) Len() int {
	return len(a.items)
}

// At returns the item at i.
func (a *Array[T]) At(i int) T {
	return a.items[i]
}

// IndexOf returns the position of the first item that is the same as v, or -1.
func (a *Array[T]) IndexOf(v T) int {
	for i, item := range a.items {
		if identity.Same(any(item), any(v)) {
			return i
		}
	}
	return -1
}

// SubscribeArrayChange registers fn to receive every change set.
func (a *Array[T]) SubscribeArrayChange(fn func([]Record)) *Subscription {
	id := a.subs.add(fn)
	return newSubscription(func() { a.subs.remove(id) })
}

// SubscriberCount returns the number of change subscribers.
func (a *Array[T]) SubscriberCount() int {
	return a.subs.len()
}

// Push appends values.
func (a *Array[T]) Push(values ...T) {
	if len(values) == 0 {
		return
	}
	a.beginChange()
	start := len(a.items)
	a.items = append(a.items, values...)
	records := make([]Record, len(values))
	for i, v := range values {
		records[i] = Record{Status: Added, Index: start + i, Value: v}
	}
	a.notify(records)
}

// Unshift prepends values.
func (a *Array[T]) Unshift(values ...T) {
	a.Splice(0, 0, values...)
}

// Insert inserts values at index.
func (a *Array[T]) Insert(index int, values ...T) {
	a.Splice(index, 0, values...)
}

// Pop removes and returns the last item.
func (a *Array[T]) Pop() (T, bool) {
	var zero T
	if len(a.items) == 0 {
		return zero, false
	}
	removed := a.Splice(len(a.items)-1, 1)
	return removed[0], true
}

// Shift removes and returns the first item.
func (a *Array[T]) Shift() (T, bool) {
	var zero T
	if len(a.items) == 0 {
		return zero, false
	}
	removed := a.Splice(0, 1)
	return removed[0], true
}

// Splice removes deleteCount items at start, inserts values there, and
// returns the removed items. A negative start counts from the end.
func (a *Array[T]) Splice(start, deleteCount int, values ...T) []T {
	length := len(a.items)
	if start < 0 {
		start += length
	}
	start = min(max(start, 0), length)
	endDelete := min(start+max(deleteCount, 0), length)
	if endDelete == start && len(values) == 0 {
		return nil
	}

	a.beginChange()
	removed := slices.Clone(a.items[start:endDelete])
	a.items = slices.Replace(a.items, start, endDelete, values...)

	// Interleave per position like the upstream diff does.
	endAdd := start + len(values)
	var records []Record
	var deletions, additions []int
	for index := start; index < max(endDelete, endAdd); index++ {
		if index < endDelete {
			deletions = append(deletions, len(records))
			records = append(records, Record{Status: Deleted, Index: index, Value: removed[index-start]})
		}
		if index < endAdd {
			additions = append(additions, len(records))
			records = append(records, Record{Status: Added, Index: index, Value: values[index-start]})
		}
	}
	findMoves(records, deletions, additions, 0)
	a.notify(records)
	return removed
}

// Remove deletes every item that is the same as v and returns them.
func (a *Array[T]) Remove(v T) []T {
	return a.RemoveFunc(func(item T) bool { return identity.Same(any(item), any(v)) })
}

// RemoveAll deletes every item that is the same as one of values.
func (a *Array[T]) RemoveAll(values ...T) []T {
	return a.RemoveFunc(func(item T) bool {
		for _, v := range values {
			if identity.Same(any(item), any(v)) {
				return true
			}
		}
		return false
	})
}

// RemoveFunc deletes every item for which match returns true.
func (a *Array[T]) RemoveFunc(match func(T) bool) []T {
	var removed []T
	var records []Record
	kept := make([]T, 0, len(a.items))
	for i, item := range a.items {
		if match(item) {
			removed = append(removed, item)
			records = append(records, Record{Status: Deleted, Index: i, Value: item})
			continue
		}
		kept = append(kept, item)
	}
	if len(removed) == 0 {
		return nil
	}
	a.beginChange()
	a.items = kept
	a.notify(records)
	return removed
}

// Replace swaps the first occurrence of oldValue for newValue.
func (a *Array[T]) Replace(oldValue, newValue T) bool {
	index := a.IndexOf(oldValue)
	if index < 0 {
		return false
	}
	a.Splice(index, 1, newValue)
	return true
}

// Reverse reverses the items in place.
func (a *Array[T]) Reverse() {
	next := slices.Clone(a.items)
	slices.Reverse(next)
	a.Set(next)
}

// Sort orders the items with cmp.
func (a *Array[T]) Sort(cmp func(x, y T) int) {
	next := slices.Clone(a.items)
	slices.SortStableFunc(next, cmp)
	a.Set(next)
}

// Set replaces the whole contents, reporting the diff against the old ones.
func (a *Array[T]) Set(items []T) {
	a.beginChange()
	before := a.Items()
	a.items = slices.Clone(items)
	if a.config.deferred != nil {
		a.notify(nil)
		return
	}
	a.notify(CompareArrays(before, a.Items(), CompareOptions{Sparse: true}))
}

// beginChange snapshots the contents ahead of the first deferred mutation.
func (a *Array[T]) beginChange() {
	if a.config.deferred == nil || a.pending {
		return
	}
	a.pending = true
	a.snapshot = a.Items()
}

func (a *Array[T]) flushDeferred() {
	before := a.snapshot
	a.pending = false
	a.scheduled = false
	a.snapshot = nil
	records := CompareArrays(before, a.Items(), CompareOptions{Sparse: true})
	a.emit(records)
}

func (a *Array[T]) notify(records []Record) {
	if a.config.deferred != nil {
		if !a.scheduled {
			a.scheduled = true
			a.config.deferred.Schedule(a.flushDeferred)
		}
		return
	}
	a.emit(records)
}

func (a *Array[T]) emit(records []Record) {
	if len(records) == 0 {
		return
	}
	for _, fn := range a.subs.snapshot() {
		fn(records)
	}
}
