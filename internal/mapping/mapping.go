// Package mapping reconciles the children of a node with a whole array
// snapshot. Each call diffs the new array against the previous call's and
// moves, keeps, maps or removes node groups accordingly. It is the unbatched
// counterpart of the foreach reconciler.
package mapping

import (
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/identity"
	"github.com/livefir/livebind/internal/observable"
)

const lastMappingResultKey = "mapping.lastMappingResult"

// MapFunc renders the nodes for one array entry. The nodes may be detached or
// still inside a scratch container; they are moved into place afterwards.
type MapFunc func(value any, index *observable.Observable[int]) ([]*html.Node, error)

// NodeCallback is called once per node of an affected entry. i counts the
// entries passed to the same callback.
type NodeCallback func(node *html.Node, i int, value any)

// Options tunes SetDomNodeChildrenFromArrayMapping.
type Options struct {
	DontLimitMoves bool

	// BeforeRemove takes over removal: deleted nodes are cleaned but left in
	// place for the callback to remove.
	BeforeRemove NodeCallback
	BeforeMove   NodeCallback
	AfterMove    NodeCallback
	// AfterAdd is only used when AfterRender is nil.
	AfterAdd NodeCallback

	// AfterRender runs once for each newly mapped entry after its nodes are
	// in place.
	AfterRender func(value any, nodes []*html.Node, index *observable.Observable[int])

	// EditScript is used instead of diffing when the caller already has the
	// change records. It is ignored while entries await removal.
	EditScript []observable.Record
}

// Entry is one mapped array value and the nodes rendered for it.
type Entry struct {
	Value any
	Nodes []*html.Node
	Index *observable.Observable[int]

	mapped      bool
	initialized bool
}

type mappingResult struct {
	entries          []*Entry
	waitingForRemove int
}

// deletedItem replaces the value of entries handed to BeforeRemove, so they
// never match a real array value again.
var deletedItem = &struct{ name string }{"deleted"}

// SetDomNodeChildrenFromArrayMapping makes the children of container (an
// element or virtual element) reflect array. Entries whose value is still
// present keep their nodes, moved if needed; new values are mapped; values
// that are gone have their nodes removed. Nodes removed by someone else are
// skipped. Mapping failures are combined into the returned error.
func SetDomNodeChildrenFromArrayMapping(doc *dom.Document, container *html.Node, array []any, mapping MapFunc, opts Options) error {
	var last *mappingResult
	if v, ok := dom.GetData(container, lastMappingResultKey); ok {
		last = v.(*mappingResult)
	}

	var (
		result           []*Entry
		currentIndex     int
		lastIndex        int
		waitingForRemove int
		nodesToDelete    []*html.Node
		moveFirst        []int
		forBeforeRemove  []*Entry
		forMove          []*Entry
		forAfterAdd      []*Entry
	)

	itemAdded := func(value any) {
		e := &Entry{Value: value, Index: observable.New(currentIndex)}
		currentIndex++
		result = append(result, e)
		if opts.AfterRender == nil {
			forAfterAdd = append(forAfterAdd, e)
		}
	}
	itemMovedOrRetained := func(oldPosition int) {
		e := last.entries[oldPosition]
		if currentIndex != oldPosition {
			forMove = append(forMove, e)
		}
		e.Index.Set(currentIndex)
		currentIndex++
		e.Nodes = dom.FixUpContinuousNodeArray(e.Nodes, container)
		result = append(result, e)
	}

	if last == nil {
		for _, v := range array {
			itemAdded(v)
		}
	} else {
		script := opts.EditScript
		if script == nil || last.waitingForRemove > 0 {
			previous := make([]any, len(last.entries))
			for i, e := range last.entries {
				previous[i] = e.Value
			}
			script = observable.CompareArrays(previous, array, observable.CompareOptions{
				DontLimitMoves: opts.DontLimitMoves,
				Sparse:         true,
			})
		}

		for _, r := range script {
			switch r.Status {
			case observable.Deleted:
				for lastIndex < r.Index {
					itemMovedOrRetained(lastIndex)
					lastIndex++
				}
				if !r.IsMoved {
					e := last.entries[lastIndex]
					e.Nodes = dom.FixUpContinuousNodeArray(e.Nodes, container)
					if len(e.Nodes) > 0 {
						queue := true
						if opts.BeforeRemove != nil {
							result = append(result, e)
							waitingForRemove++
							if IsDeleted(e) {
								queue = false
							} else {
								forBeforeRemove = append(forBeforeRemove, e)
							}
						}
						if queue {
							nodesToDelete = append(nodesToDelete, e.Nodes...)
						}
					}
				}
				lastIndex++

			case observable.Added:
				for currentIndex < r.Index {
					itemMovedOrRetained(lastIndex)
					lastIndex++
				}
				if r.IsMoved {
					moveFirst = append(moveFirst, len(result))
					itemMovedOrRetained(r.Moved)
				} else {
					itemAdded(r.Value)
				}
			}
		}
		for currentIndex < len(array) {
			itemMovedOrRetained(lastIndex)
			lastIndex++
		}
	}

	dom.SetData(container, lastMappingResultKey, &mappingResult{
		entries:          result,
		waitingForRemove: waitingForRemove,
	})

	// beforeMove runs while the DOM is still untouched.
	callCallback(opts.BeforeMove, forMove)

	for _, n := range nodesToDelete {
		if opts.BeforeRemove != nil {
			dom.CleanNode(n)
		} else {
			dom.RemoveNode(doc, n)
		}
	}

	active := doc.ActiveElement()

	// Place the entries the diff marked as moved first; this tends to reduce
	// how many other nodes need moving.
	for _, i := range moveFirst {
		var after *html.Node
		for k := i - 1; k >= 0; k-- {
			if nodes := result[k].Nodes; len(nodes) > 0 {
				after = nodes[len(nodes)-1]
				break
			}
		}
		for _, n := range result[i].Nodes {
			place(container, n, after)
			after = n
		}
	}

	var errs error
	var after *html.Node
	for _, e := range result {
		if !e.mapped {
			nodes, err := mapping(e.Value, e.Index)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("map item %d: %w", e.Index.Peek(), err))
			}
			e.Nodes = nodes
			e.mapped = true
		}
		for _, n := range e.Nodes {
			place(container, n, after)
			after = n
		}
		if !e.initialized && opts.AfterRender != nil {
			opts.AfterRender(e.Value, e.Nodes, e.Index)
			e.initialized = true
			if len(e.Nodes) > 0 {
				after = e.Nodes[len(e.Nodes)-1]
			}
		}
	}

	if active != nil && doc.ActiveElement() != active {
		doc.Focus(active)
	}

	callCallback(opts.BeforeRemove, forBeforeRemove)
	for _, e := range forBeforeRemove {
		e.Value = deletedItem
	}

	callCallback(opts.AfterMove, forMove)
	callCallback(opts.AfterAdd, forAfterAdd)
	return errs
}

// Entries returns the current mapping of container, including entries still
// waiting for a BeforeRemove callback to remove their nodes.
func Entries(container *html.Node) []*Entry {
	v, ok := dom.GetData(container, lastMappingResultKey)
	if !ok {
		return nil
	}
	return v.(*mappingResult).entries
}

// IsDeleted reports whether e was handed to BeforeRemove.
func IsDeleted(e *Entry) bool {
	return identity.Same(e.Value, any(deletedItem))
}

// place puts n right after ref inside container, or first when ref is nil,
// leaving it alone if it is already there.
func place(container, n, ref *html.Node) {
	if ref == nil {
		if dom.FirstChild(container) != n {
			dom.Prepend(container, n)
		}
		return
	}
	if ref.NextSibling != n {
		dom.InsertAfter(container, n, ref)
	}
}

func callCallback(cb NodeCallback, entries []*Entry) {
	if cb == nil {
		return
	}
	for i, e := range entries {
		for _, n := range e.Nodes {
			cb(n, i, e.Value)
		}
	}
}
