package binding

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/observable"
)

type person struct {
	Name string
	Tags map[string]string
}

func (p *person) Greeting() string { return "hi " + p.Name }

// Rank fails for every position past the first.
func (p *person) Rank(i int) (string, error) {
	if i > 0 {
		return "", errors.New("no rank")
	}
	return "first", nil
}

func TestContext_Lookup(t *testing.T) {
	root := NewRootContext(nil, map[string]any{"title": "People"})
	p := &person{Name: "Ada", Tags: map[string]string{"role": "admin"}}
	index := observable.New(3)
	child := root.CreateChild(p, ChildOptions{As: "person", Index: index, List: []any{p}})

	tests := []struct {
		name string
		want any
		ok   bool
	}{
		{"$data", p, true},
		{"Name", "Ada", true},
		{"person", p, true},
		{"person.Name", "Ada", true},
		{"Tags.role", "admin", true},
		{"Greeting", "hi Ada", true},
		{"title", "People", true},
		{"$parent.title", "People", true},
		{"$index", 3, true},
		{"missing", nil, false},
		{"Name.missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := child.Lookup(tt.name)
			if ok != tt.ok {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if child.Root() != root {
		t.Error("Root should return the outermost context")
	}
	if l, ok := child.List().([]any); !ok || len(l) != 1 {
		t.Errorf("unexpected $list %v", child.List())
	}
}

func TestContext_IndexRequestedOnce(t *testing.T) {
	root := NewRootContext(nil, nil)
	requests := 0
	index := observable.New(0)
	child := root.CreateChild("x", ChildOptions{Index: index, OnIndexRequested: func() { requests++ }})
	grandchild := child.CreateChild("y", ChildOptions{})

	if child.IndexRequested() {
		t.Fatal("index should not be requested yet")
	}
	if grandchild.IndexObservable() != index {
		t.Error("grandchild should inherit the nearest $index")
	}

	index.Set(2)
	if got := grandchild.Index(); got != 2 {
		t.Errorf("Index() = %d, want 2", got)
	}
	child.Index()
	if requests != 1 {
		t.Errorf("expected exactly 1 request notification, got %d", requests)
	}
	if !child.IndexRequested() {
		t.Error("IndexRequested should report true after a read")
	}
	if root.Index() != 0 {
		t.Error("root without $index should report 0")
	}
}

func parseContainer(t *testing.T, s string) *html.Node {
	t.Helper()
	nodes, err := dom.ParseFragment(s)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	container := dom.NewContainer()
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container
}

func TestTemplateApplier_TextAndAttributes(t *testing.T) {
	container := parseContainer(t, `<li class="item-{{.Index}}">{{.Index}}: {{.Data.Name}}</li>`)
	index := observable.New(0)
	ctx := NewRootContext(nil, nil).CreateChild(&person{Name: "Ada"}, ChildOptions{Index: index})

	applier := NewTemplateApplier(nil)
	if p := applier.ApplyBindingsToDescendants(ctx, container); p.Err() != nil {
		t.Fatalf("apply: %v", p.Err())
	}

	li := container.FirstChild
	if got := dom.TextContent(li); got != "0: Ada" {
		t.Errorf("text = %q", got)
	}
	if v, _ := dom.Attr(li, "class"); v != "item-0" {
		t.Errorf("class = %q", v)
	}

	index.Set(4)
	if got := dom.TextContent(li); got != "4: Ada" {
		t.Errorf("text after index change = %q", got)
	}
	if v, _ := dom.Attr(li, "class"); v != "item-4" {
		t.Errorf("class after index change = %q", v)
	}

	dom.CleanNode(li)
	if index.SubscriberCount() != 0 {
		t.Errorf("subscriptions should be disposed with the node, %d left", index.SubscriberCount())
	}
}

func TestTemplateApplier_TemplateError(t *testing.T) {
	container := parseContainer(t, `<p>{{.Nope</p>`)
	p := NewTemplateApplier(nil).ApplyBindingsToDescendants(NewRootContext(nil, nil), container)
	if p.Err() == nil {
		t.Fatal("expected a parse error")
	}
}

func TestTemplateApplier_IndexRerenderErrors(t *testing.T) {
	container := parseContainer(t, `<li>{{.Data.Rank .Index}}</li>`)
	index := observable.New(0)
	ctx := NewRootContext(nil, nil).CreateChild(&person{Name: "Ada"}, ChildOptions{Index: index})

	var reported []error
	applier := NewTemplateApplier(nil)
	applier.OnError = func(err error) { reported = append(reported, err) }
	if p := applier.ApplyBindingsToDescendants(ctx, container); p.Err() != nil {
		t.Fatalf("apply: %v", p.Err())
	}
	li := container.FirstChild
	if got := dom.TextContent(li); got != "first" {
		t.Errorf("text = %q", got)
	}

	index.Set(2)
	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %d", len(reported))
	}
	if !strings.Contains(reported[0].Error(), "no rank") {
		t.Errorf("unexpected error %v", reported[0])
	}
	if got := dom.TextContent(li); got != "first" {
		t.Errorf("failed re-render should keep the old text, got %q", got)
	}
}

func TestTemplateApplier_Directives(t *testing.T) {
	reg := NewRegistry()
	var seen []string
	pending := async.New()
	reg.Register("probe", func(ctx *Context, node *html.Node, value any, params map[string]string) (*async.Promise, error) {
		seen = append(seen, value.(string)+"/"+params["mode"])
		return pending, nil
	})
	reg.Register("fail", func(*Context, *html.Node, any, map[string]string) (*async.Promise, error) {
		return nil, errors.New("boom")
	})

	container := parseContainer(t, `<div data-probe="label" data-probe-mode="a"><span>{{.Broken</span></div><!-- lb probe: label; mode=b --><em>{{.Broken</em><!-- /lb --><p>{{.Data.label}}</p>`)
	ctx := NewRootContext(nil, map[string]string{"label": "L"})
	p := NewTemplateApplier(reg).ApplyBindingsToDescendants(ctx, container)

	if strings.Join(seen, ",") != "L/a,L/b" {
		t.Errorf("handlers saw %v", seen)
	}
	if p.Settled() {
		t.Fatal("completion should wait for the handler's promise")
	}
	pending.Resolve()
	if !p.Settled() || p.Err() != nil {
		t.Errorf("expected success after resolve, err = %v", p.Err())
	}
	if got := dom.TextContent(container.LastChild); got != "L" {
		t.Errorf("sibling after virtual element not bound: %q", got)
	}

	failing := parseContainer(t, `<div data-fail="label"></div>`)
	p = NewTemplateApplier(reg).ApplyBindingsToDescendants(ctx, failing)
	if p.Err() == nil || !strings.Contains(p.Err().Error(), "boom") {
		t.Errorf("expected handler error, got %v", p.Err())
	}
}

func TestParseVirtualBinding(t *testing.T) {
	name, expr, params, err := ParseVirtualBinding("foreach: items; as=item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "foreach" || expr != "items" || params["as"] != "item" {
		t.Errorf("got %q %q %v", name, expr, params)
	}
	if _, _, _, err := ParseVirtualBinding("nothing"); err == nil {
		t.Error("expected error for missing colon")
	}
}
