package binding

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"
	"text/template"

	"go.uber.org/multierr"
	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/dom"
)

// DirectivePrefix marks element attributes that name a registered handler,
// e.g. data-foreach="items". Parameters use data-<name>-<key>.
const DirectivePrefix = "data-"

// TemplateApplier is the default Applier. It renders {{ }} expressions in
// text nodes and attribute values with the binding context as dot, and hands
// elements or virtual elements carrying a registered directive to their
// handler.
type TemplateApplier struct {
	Registry *Registry
	// OnError receives errors from re-rendering after an $index change.
	// They are logged when it is nil.
	OnError func(error)

	cache sync.Map // template source -> *template.Template
}

// NewTemplateApplier creates an applier dispatching directives to reg, which
// may be nil.
func NewTemplateApplier(reg *Registry) *TemplateApplier {
	return &TemplateApplier{Registry: reg}
}

// ApplyBindingsToDescendants binds every descendant of root.
func (a *TemplateApplier) ApplyBindingsToDescendants(ctx *Context, root *html.Node) *async.Promise {
	var promises []*async.Promise
	var errs error
	a.applyChildren(ctx, root, &promises, &errs)
	if errs != nil {
		promises = append(promises, async.Rejected(errs))
	}
	return async.All(promises...)
}

func (a *TemplateApplier) applyChildren(ctx *Context, parent *html.Node, promises *[]*async.Promise, errs *error) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
			*errs = multierr.Append(*errs, a.bindText(ctx, c))

		case html.CommentNode:
			if !dom.IsVirtualStart(c) {
				break
			}
			handled, p, err := a.bindVirtual(ctx, c)
			*errs = multierr.Append(*errs, err)
			*promises = append(*promises, p)
			if handled {
				if end := dom.VirtualEnd(c); end != nil {
					next = end.NextSibling
				}
			}

		case html.ElementNode:
			*errs = multierr.Append(*errs, a.bindAttributes(ctx, c))
			handled, p, err := a.bindDirective(ctx, c)
			*errs = multierr.Append(*errs, err)
			*promises = append(*promises, p)
			if !handled {
				a.applyChildren(ctx, c, promises, errs)
			}
		}
		c = next
	}
}

func (a *TemplateApplier) bindDirective(ctx *Context, el *html.Node) (bool, *async.Promise, error) {
	for _, attr := range el.Attr {
		name, ok := strings.CutPrefix(attr.Key, DirectivePrefix)
		if !ok || strings.Contains(name, "-") {
			continue
		}
		h, ok := a.Registry.Lookup(name)
		if !ok {
			continue
		}
		params := make(map[string]string)
		prefix := DirectivePrefix + name + "-"
		for _, other := range el.Attr {
			if key, ok := strings.CutPrefix(other.Key, prefix); ok {
				params[key] = other.Val
			}
		}
		p, err := a.invoke(ctx, el, h, name, attr.Val, params)
		return true, p, err
	}
	return false, nil, nil
}

func (a *TemplateApplier) bindVirtual(ctx *Context, start *html.Node) (bool, *async.Promise, error) {
	name, expr, params, err := ParseVirtualBinding(dom.VirtualValue(start))
	if err != nil {
		return false, nil, err
	}
	h, ok := a.Registry.Lookup(name)
	if !ok {
		return false, nil, nil
	}
	p, err := a.invoke(ctx, start, h, name, expr, params)
	return true, p, err
}

func (a *TemplateApplier) invoke(ctx *Context, node *html.Node, h Handler, name, expr string, params map[string]string) (*async.Promise, error) {
	value, ok := ctx.Lookup(expr)
	if !ok {
		return nil, fmt.Errorf("%s: cannot resolve %q", name, expr)
	}
	p, err := h(ctx, node, value, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

func (a *TemplateApplier) bindText(ctx *Context, n *html.Node) error {
	if !strings.Contains(n.Data, "{{") {
		return nil
	}
	src := n.Data
	render := func() error {
		out, err := a.execute(src, ctx)
		if err != nil {
			return err
		}
		n.Data = out
		return nil
	}
	if err := render(); err != nil {
		return err
	}
	a.watchIndex(ctx, n, src, render)
	return nil
}

func (a *TemplateApplier) bindAttributes(ctx *Context, el *html.Node) error {
	var errs error
	for i := range el.Attr {
		if !strings.Contains(el.Attr[i].Val, "{{") {
			continue
		}
		src := el.Attr[i].Val
		render := func() error {
			out, err := a.execute(src, ctx)
			if err != nil {
				return err
			}
			el.Attr[i].Val = out
			return nil
		}
		if err := render(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		a.watchIndex(ctx, el, src, render)
	}
	return errs
}

// watchIndex re-renders when $index changes, if the template reads it. The
// subscription lives as long as the node.
func (a *TemplateApplier) watchIndex(ctx *Context, n *html.Node, src string, render func() error) {
	if !strings.Contains(src, ".Index") {
		return
	}
	index := ctx.IndexObservable()
	if index == nil {
		return
	}
	sub := index.Subscribe(func(i int) {
		if err := render(); err != nil {
			a.reportError(fmt.Errorf("re-render after $index changed to %d: %w", i, err))
		}
	})
	dom.AddDisposeCallback(n, sub.Dispose)
}

func (a *TemplateApplier) reportError(err error) {
	if a.OnError != nil {
		a.OnError(err)
		return
	}
	log.Printf("Warning: %v", err)
}

func (a *TemplateApplier) execute(src string, ctx *Context) (string, error) {
	var tmpl *template.Template
	if cached, ok := a.cache.Load(src); ok {
		tmpl = cached.(*template.Template)
	} else {
		parsed, err := template.New("binding").Option("missingkey=zero").Parse(src)
		if err != nil {
			return "", fmt.Errorf("failed to parse template %q: %w", src, err)
		}
		a.cache.Store(src, parsed)
		tmpl = parsed
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", src, err)
	}
	return buf.String(), nil
}
