package binding

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
)

// Applier applies bindings to the descendants of root. The returned promise
// settles when asynchronous bindings finish; nil means everything completed
// synchronously.
type Applier interface {
	ApplyBindingsToDescendants(ctx *Context, root *html.Node) *async.Promise
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx *Context, root *html.Node) *async.Promise

// ApplyBindingsToDescendants calls f.
func (f ApplierFunc) ApplyBindingsToDescendants(ctx *Context, root *html.Node) *async.Promise {
	return f(ctx, root)
}

// Handler takes control of node and its descendants. value is the resolved
// binding expression and params holds extra key/value settings.
type Handler func(ctx *Context, node *html.Node, value any, params map[string]string) (*async.Promise, error)

// Registry maps directive names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs h under name, replacing any previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered directive names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseVirtualBinding splits the text of a virtual element comment of the
// form "name: expr; key=value; ..." into its parts.
func ParseVirtualBinding(text string) (name, expr string, params map[string]string, err error) {
	parts := strings.Split(text, ";")
	name, expr, ok := strings.Cut(parts[0], ":")
	if !ok {
		return "", "", nil, fmt.Errorf("invalid virtual binding %q: expected name: value", text)
	}
	params = make(map[string]string)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return "", "", nil, fmt.Errorf("invalid virtual binding parameter %q", p)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return strings.TrimSpace(name), strings.TrimSpace(expr), params, nil
}
