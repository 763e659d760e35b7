// Package dom adapts golang.org/x/net/html trees into the live DOM the
// binding layer mutates: focus tracking, comment-delimited virtual elements,
// node cloning, disposal callbacks and rendering.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed tree plus the state a browser document keeps beside
// it. Only focus is tracked.
type Document struct {
	Root   *html.Node
	active *html.Node
}

// NewDocument wraps an existing tree.
func NewDocument(root *html.Node) *Document {
	return &Document{Root: root}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString parses s as a full HTML document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses an HTML fragment in a body context and returns its
// top-level nodes.
func ParseFragment(s string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	var out []*html.Node
	for _, n := range nodes {
		out = append(out, extractFromWrappers(n)...)
	}
	return out, nil
}

// extractFromWrappers unwraps html/body elements the fragment parser may add.
func extractFromWrappers(n *html.Node) []*html.Node {
	if n.Type != html.ElementNode || (n.DataAtom != atom.Html && n.DataAtom != atom.Body) {
		return []*html.Node{n}
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Head {
			continue
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			out = append(out, extractFromWrappers(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Body returns the document's body element, if any.
func (d *Document) Body() *html.Node {
	return FindElement(d.Root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
}

// GetElementByID finds the element whose id attribute equals id.
func (d *Document) GetElementByID(id string) *html.Node {
	return GetElementByID(d.Root, id)
}

// ActiveElement returns the focused element, or nil.
func (d *Document) ActiveElement() *html.Node {
	if d == nil {
		return nil
	}
	return d.active
}

// Focus moves focus to n. Focusing a node outside the document is ignored.
func (d *Document) Focus(n *html.Node) {
	if d == nil || n == nil || !Contains(d.Root, n) {
		return
	}
	d.active = n
}

// Blur clears focus.
func (d *Document) Blur() {
	if d != nil {
		d.active = nil
	}
}

// Detach removes n from its parent. Focus inside n is lost, as in a browser.
func (d *Document) Detach(n *html.Node) {
	if d != nil && d.active != nil && Contains(n, d.active) {
		d.active = nil
	}
	detach(n)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Contains reports whether n is ancestor itself or one of its descendants.
func Contains(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// FindElement returns the first element below root, in document order, for
// which match returns true.
func FindElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// GetElementByID finds the element below root whose id attribute equals id.
func GetElementByID(root *html.Node, id string) *html.Node {
	return FindElement(root, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// TextContent concatenates the text below n.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Children returns the direct children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// NewContainer returns a detached holder element, used to keep template
// content and cloned instantiations off the document.
func NewContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}
}

// CloneNode copies n, and its subtree when deep is set. The copy is detached.
func CloneNode(n *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	if deep {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.AppendChild(CloneNode(child, true))
		}
	}
	return c
}
