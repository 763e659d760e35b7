// Package binding provides the binding context threaded through template
// instantiation, the capability interface used to apply bindings to a
// subtree, and a directive registry with a text/template based applier.
package binding

import (
	"reflect"
	"strings"

	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/observable"
)

// Context is the lexical scope for one level of template instantiation.
type Context struct {
	data   any
	parent *Context
	alias  string
	list   any
	doc    *dom.Document
	extras map[string]any

	index            *observable.Observable[int]
	indexRequested   bool
	onIndexRequested func()
}

// ChildOptions configures CreateChild.
type ChildOptions struct {
	// As also exposes the data under this name.
	As string
	// Index is the child's $index. Reading it through Index() for the first
	// time calls OnIndexRequested.
	Index            *observable.Observable[int]
	OnIndexRequested func()
	// List is exposed as $list.
	List any
	// Extend adds extra names to the child scope.
	Extend map[string]any
}

// NewRootContext creates the top-level context for data inside doc.
func NewRootContext(doc *dom.Document, data any) *Context {
	return &Context{data: data, doc: doc}
}

// CreateChild creates a nested context for data.
func (c *Context) CreateChild(data any, opts ChildOptions) *Context {
	child := &Context{
		data:             data,
		parent:           c,
		alias:            opts.As,
		list:             opts.List,
		doc:              c.doc,
		index:            opts.Index,
		onIndexRequested: opts.OnIndexRequested,
	}
	if len(opts.Extend) > 0 {
		child.extras = make(map[string]any, len(opts.Extend))
		for k, v := range opts.Extend {
			child.extras[k] = v
		}
	}
	return child
}

// Extend adds a name to this context's scope.
func (c *Context) Extend(name string, v any) {
	if c.extras == nil {
		c.extras = make(map[string]any)
	}
	c.extras[name] = v
}

// Data returns $data.
func (c *Context) Data() any { return c.data }

// Parent returns the enclosing context, or nil at the root.
func (c *Context) Parent() *Context { return c.parent }

// Root returns the outermost context.
func (c *Context) Root() *Context {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Alias returns the name given with ChildOptions.As.
func (c *Context) Alias() string { return c.alias }

// Document returns the document the context renders into.
func (c *Context) Document() *dom.Document { return c.doc }

// List returns $list of the nearest context that has one.
func (c *Context) List() any {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.list != nil {
			return ctx.list
		}
	}
	return nil
}

// IndexObservable returns the $index observable of the nearest context that
// has one, without marking it requested.
func (c *Context) IndexObservable() *observable.Observable[int] {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.index != nil {
			return ctx.index
		}
	}
	return nil
}

// Index returns $index. The first read on a context notifies its owner, which
// from then on keeps the value current.
func (c *Context) Index() int {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.index == nil {
			continue
		}
		if !ctx.indexRequested {
			ctx.indexRequested = true
			if ctx.onIndexRequested != nil {
				ctx.onIndexRequested()
			}
		}
		return ctx.index.Get()
	}
	return 0
}

// IndexRequested reports whether Index has been read on the context owning
// the nearest $index.
func (c *Context) IndexRequested() bool {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.index != nil {
			return ctx.indexRequested
		}
	}
	return false
}

// Get is Lookup without the found flag, for use from templates.
func (c *Context) Get(name string) any {
	v, _ := c.Lookup(name)
	return v
}

// Lookup resolves name in this scope and then in the enclosing ones. Dotted
// paths walk fields and map keys of the first segment's value.
func (c *Context) Lookup(name string) (any, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	head, rest, dotted := strings.Cut(name, ".")
	v, ok := c.lookupName(head)
	if !ok || !dotted {
		return v, ok
	}
	for _, part := range strings.Split(rest, ".") {
		v, ok = member(v, part)
		if !ok {
			return nil, false
		}
	}
	return v, true
}

func (c *Context) lookupName(name string) (any, bool) {
	switch name {
	case "$data":
		return c.data, true
	case "$index":
		return c.Index(), true
	case "$parent":
		if c.parent == nil {
			return nil, false
		}
		return c.parent.data, true
	case "$root":
		return c.Root().data, true
	case "$list":
		l := c.List()
		return l, l != nil
	}
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.alias != "" && ctx.alias == name {
			return ctx.data, true
		}
		if v, ok := ctx.extras[name]; ok {
			return v, true
		}
		if v, ok := member(ctx.data, name); ok {
			return v, true
		}
	}
	return nil, false
}

// member reads an exported field, map entry or niladic method of v.
func member(v any, name string) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), true
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f, ok := rv.Type().FieldByName(name)
		if !ok || !f.IsExported() {
			return nil, false
		}
		return rv.FieldByIndex(f.Index).Interface(), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	}
	return nil, false
}
