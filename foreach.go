// Package livebind keeps the children of a DOM node in step with an
// observable array. Array notifications are queued, collapsed into batched
// operations and applied once per frame, reusing the nodes of items that move
// instead of rendering them again.
package livebind

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/binding"
	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/observable"
)

// State is the lifecycle position of a ForEach.
type State int

const (
	StateConstructed State = iota
	StatePriming
	StateIdle
	StateQueuedForFlush
	StateFlushing
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StatePriming:
		return "priming"
	case StateIdle:
		return "idle"
	case StateQueuedForFlush:
		return "queued"
	case StateFlushing:
		return "flushing"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ForEach renders a template once per array item inside an element or
// virtual element and keeps the rendering in step with the array.
//
// A ForEach is not safe for concurrent use. Mutate the array, run the
// scheduler and settle before-remove promises from one goroutine, for
// example a schedule.Loop.
type ForEach struct {
	id       string
	config   Config
	doc      *dom.Document
	parent   *binding.Context
	element  *html.Node
	template *html.Node

	source       observable.ArrayLike
	list         any
	subscription *observable.Subscription
	disposeID    int

	state          State
	queue          []Change
	flushScheduled bool

	ranges          nodeRangeIndex
	pending         pendingDeleteStore
	indexesToDelete []int

	indexesRequested  bool
	refreshAllIndexes bool

	isEmpty         *observable.Observable[bool]
	primingFlush    bool
	priming         []*async.Promise
	bindingComplete *async.Promise
}

// New binds data to the children of element. data is an
// observable.ArrayLike, a slice or nil. parent supplies the enclosing scope
// and the document; when nil, a root context over element's tree is used.
//
// The element's current children (or the template named by WithName) become
// the item template and the element is emptied. Initial items are rendered
// before New returns.
func New(parent *binding.Context, element *html.Node, data any, opts ...Option) (*ForEach, error) {
	if element == nil {
		return nil, fmt.Errorf("%w: nil element", ErrNotNodes)
	}
	items, source, err := arrayOf(data)
	if err != nil {
		return nil, err
	}

	config := newConfig(opts)
	if parent == nil {
		parent = binding.NewRootContext(dom.NewDocument(rootOf(element)), nil)
	}
	doc := parent.Document()
	if doc == nil {
		doc = dom.NewDocument(rootOf(element))
	}

	f := &ForEach{
		id:       uuid.NewString(),
		config:   config,
		doc:      doc,
		parent:   parent,
		element:  element,
		template: dom.NewContainer(),
		source:   source,
		list:     data,
		state:    StateConstructed,
		isEmpty:  observable.New(true),
	}

	if config.Name != "" {
		src := doc.GetElementByID(config.Name)
		if src == nil {
			return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, config.Name)
		}
		for _, c := range dom.ChildNodes(src) {
			f.template.AppendChild(dom.CloneNode(c, true))
		}
		dom.EmptyNode(doc, element)
	} else {
		dom.MoveChildren(doc, element, f.template)
	}
	f.disposeID = dom.AddDisposeCallback(element, f.Dispose)

	if config.Metrics != nil {
		config.Metrics.IncrementInstanceCreated()
	}

	f.state = StatePriming
	if source != nil {
		f.subscription = source.SubscribeArrayChange(f.onArrayChange)
	}
	if len(items) > 0 {
		records := make([]observable.Record, len(items))
		for i, v := range items {
			records[i] = observable.Record{Status: observable.Added, Index: i, Value: v}
		}
		f.primingFlush = true
		f.enqueue(records, true)
		f.primingFlush = false
	} else {
		f.isEmpty.Set(true)
	}
	f.bindingComplete = async.All(f.priming...)
	f.priming = nil
	if f.state == StatePriming {
		f.state = StateIdle
	}
	return f, nil
}

// ID returns the instance id.
func (f *ForEach) ID() string {
	return f.id
}

// Element returns the bound element or virtual element start.
func (f *ForEach) Element() *html.Node {
	return f.element
}

// State returns the lifecycle state.
func (f *ForEach) State() State {
	return f.state
}

// IsEmpty is true while nothing is rendered. It changes at most once per
// flush, for use by empty-state bindings.
func (f *ForEach) IsEmpty() *observable.Observable[bool] {
	return f.isEmpty
}

// BindingComplete settles when the bindings of the initially rendered items
// have been applied. It is nil if they were all applied synchronously.
func (f *ForEach) BindingComplete() *async.Promise {
	return f.bindingComplete
}

// Len returns the number of rendered items.
func (f *ForEach) Len() int {
	return f.ranges.len()
}

// Ranges returns the node range of each rendered item in array order.
func (f *ForEach) Ranges() []NodeRange {
	return f.ranges.snapshot()
}

// Pending returns the number of queued changes waiting for a flush.
func (f *ForEach) Pending() int {
	return len(f.queue)
}

// Dispose stops following the array and removes any nodes still held for
// reuse. It is idempotent and also runs when the element is cleaned.
func (f *ForEach) Dispose() {
	if f.state == StateDisposed {
		return
	}
	f.state = StateDisposed
	if f.subscription != nil {
		f.subscription.Dispose()
	}
	f.queue = nil
	f.flushPendingDeletes()
	dom.RemoveDisposeCallback(f.element, f.disposeID)
	if f.config.Metrics != nil {
		f.config.Metrics.IncrementInstanceDisposed()
	}
}

func arrayOf(data any) ([]any, observable.ArrayLike, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil, nil
	case observable.ArrayLike:
		return v.Items(), v, nil
	case []any:
		return v, nil, nil
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, nil, fmt.Errorf("%w: %T is not an array", ErrInvalidBinding, data)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil, nil
}

func rootOf(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}
