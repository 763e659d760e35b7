package livebind

import (
	"fmt"
	"math"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/binding"
	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/observable"
)

func (f *ForEach) onArrayChange(records []observable.Record) {
	if f.state == StateDisposed {
		return
	}
	f.enqueue(records, false)
}

// enqueue appends one notification to the queue. The priming notification is
// applied at once; later ones schedule a single flush. Notifications arriving
// during a flush wait for the next one.
func (f *ForEach) enqueue(records []observable.Record, initial bool) {
	changes := coalesce(records)
	if len(changes) == 0 {
		return
	}
	f.queue = append(f.queue, changes...)

	if initial {
		f.processQueue()
		return
	}
	if f.state == StateFlushing {
		return
	}
	f.scheduleFlush()
}

func (f *ForEach) scheduleFlush() {
	if f.flushScheduled {
		return
	}
	f.flushScheduled = true
	f.state = StateQueuedForFlush
	f.config.Scheduler.Schedule(f.scheduledFlush)
}

// scheduledFlush may run after Dispose; frames already requested are not
// cancelled.
func (f *ForEach) scheduledFlush() {
	if f.state == StateDisposed || len(f.queue) == 0 {
		f.flushScheduled = false
		return
	}
	f.processQueue()
}

// processQueue applies every queued change in order.
func (f *ForEach) processQueue() {
	queue := f.queue
	f.queue = nil
	f.state = StateFlushing

	if f.config.BeforeQueueFlush != nil {
		f.callHook("beforeQueueFlush", func() { f.config.BeforeQueueFlush(queue) })
	}

	lowest := math.MaxInt
	for _, change := range queue {
		if change.hasIndex() {
			lowest = min(lowest, change.Index)
		}
		switch change.Kind {
		case ChangeAdded:
			f.added(change)
		case ChangeDeleted:
			f.deleted(change)
		case ChangeClearDeletedIndexes:
			f.clearDeletedIndexes()
		}
	}

	f.flushPendingDeletes()
	f.flushScheduled = false

	if f.indexesRequested {
		if f.refreshAllIndexes {
			lowest = 0
			f.refreshAllIndexes = false
		}
		f.updateIndexes(lowest)
	}

	if f.config.AfterQueueFlush != nil {
		f.callHook("afterQueueFlush", func() { f.config.AfterQueueFlush(queue) })
	}
	if f.config.Metrics != nil {
		f.config.Metrics.RecordFlush(len(queue))
	}
	if f.state == StateDisposed {
		return
	}

	f.isEmpty.Set(f.ranges.len() == 0)

	if f.state == StateDisposed {
		return
	}
	f.state = StateIdle
	if len(f.queue) > 0 {
		f.scheduleFlush()
	}
}

// added inserts the values of change starting at change.Index. Values whose
// nodes are waiting in the pending store are moved back instead of rendered.
// All nodes go into the document in one pass after the previous item.
func (f *ForEach) added(change Change) {
	ref := f.ranges.lastNodeBefore(change.Index)

	var nodes []*html.Node
	for i, value := range change.Values {
		position := change.Index + i
		if set, ok := f.pending.take(value); ok {
			if f.config.Metrics != nil {
				f.config.Metrics.IncrementNodesetReused()
			}
			f.ranges.insert(position, set)
			nodes = append(nodes, set.nodes...)
			continue
		}

		set, result := f.instantiate(value, position)
		f.ranges.insert(position, set)
		nodes = append(nodes, set.nodes...)
		f.track(result)
	}
	if len(nodes) == 0 {
		return
	}

	inserted, err := dom.InsertAllAfter(f.doc, f.element, nodes, ref)
	if err != nil {
		f.report(err)
		return
	}
	if f.config.AfterAdd != nil {
		f.callHook("afterAdd", func() {
			f.config.AfterAdd(AfterAddEvent{Nodes: inserted, ForEach: f})
		})
	}
}

// instantiate clones the template for value and binds it in a child context.
func (f *ForEach) instantiate(value any, position int) (set nodeset, result *async.Promise) {
	clone := dom.CloneNode(f.template, true)
	index := observable.New(position)
	ctx := f.parent.CreateChild(value, binding.ChildOptions{
		As:               f.config.As,
		Index:            index,
		OnIndexRequested: f.onIndexRequested,
		List:             f.list,
	})
	if f.config.Metrics != nil {
		f.config.Metrics.IncrementTemplateInstantiated()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = async.Rejected(fmt.Errorf("apply bindings: panic: %v", r))
			}
		}()
		result = f.config.Applier.ApplyBindingsToDescendants(ctx, clone)
	}()

	// Bindings may add nodes, so read the children afterwards.
	return nodeset{nodes: dom.Children(clone), index: index}, result
}

// track collects binding completion for priming and reports later failures.
func (f *ForEach) track(result *async.Promise) {
	if result == nil {
		return
	}
	if f.primingFlush {
		f.priming = append(f.priming, result)
		return
	}
	result.Then(func(err error) {
		if err != nil {
			f.report(fmt.Errorf("apply bindings: %w", err))
		}
	})
}

// deleted takes the item at change.Index out of the document, or parks its
// nodes in the pending store when the item could come back. The range entry
// stays until the next clear marker.
func (f *ForEach) deleted(change Change) {
	set := f.ranges.nodesAt(change.Index)
	f.indexesToDelete = append(f.indexesToDelete, change.Index)
	if f.config.Metrics != nil {
		f.config.Metrics.IncrementItemDeleted()
	}
	if f.pending.stash(change.Value, set) {
		return
	}
	f.removeNodes(set.nodes)
}

// clearDeletedIndexes drops the range entries of the deletions queued since
// the previous marker.
func (f *ForEach) clearDeletedIndexes() {
	f.ranges.removeAll(f.indexesToDelete)
	f.indexesToDelete = nil
}

// updateIndexes sets $index for every item from position from onwards.
func (f *ForEach) updateIndexes(from int) {
	for i := max(from, 0); i < f.ranges.len(); i++ {
		if index := f.ranges.at(i).index; index != nil {
			index.Set(i)
		}
	}
}

// onIndexRequested is called the first time any item reads its $index. From
// then on indexes are refreshed after every flush.
func (f *ForEach) onIndexRequested() {
	if f.indexesRequested {
		return
	}
	f.indexesRequested = true
	if f.state == StateFlushing {
		f.refreshAllIndexes = true
		return
	}
	f.updateIndexes(0)
}

// flushPendingDeletes removes every nodeset nobody reclaimed.
func (f *ForEach) flushPendingDeletes() {
	for _, set := range f.pending.drain() {
		f.removeNodes(set.nodes)
	}
}

// removeNodes cleans and detaches nodes, after the before-remove hook's
// promise resolves when one is configured.
func (f *ForEach) removeNodes(nodes []*html.Node) {
	if len(nodes) == 0 {
		return
	}
	remove := func() {
		removed := 0
		for i := len(nodes) - 1; i >= 0; i-- {
			n := nodes[i]
			dom.CleanNode(n)
			if n.Parent != nil {
				f.doc.Detach(n)
				removed++
			}
		}
		if f.config.Metrics != nil {
			f.config.Metrics.AddNodesRemoved(removed)
		}
	}

	if f.config.BeforeRemove == nil {
		remove()
		return
	}

	var wait *async.Promise
	if !f.callHook("beforeRemove", func() {
		wait = f.config.BeforeRemove(BeforeRemoveEvent{Nodes: nodes, ForEach: f})
	}) {
		remove()
		return
	}
	if wait == nil {
		return
	}
	wait.Then(func(err error) {
		if err != nil {
			if f.config.Metrics != nil {
				f.config.Metrics.IncrementRemovalError()
			}
			f.report(&HookError{Hook: "beforeRemove", Err: err})
			return
		}
		remove()
	})
}
