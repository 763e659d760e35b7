package dom

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Virtual elements are ranges of siblings delimited by <!-- lb ... --> and
// <!-- /lb --> comments. They stand in for a container element when no real
// tag is wanted.
var (
	startCommentRegex = regexp.MustCompile(`^\s*lb(?:\s+([\s\S]+))?\s*$`)
	endCommentRegex   = regexp.MustCompile(`^\s*/lb\s*$`)
)

// IsVirtualStart reports whether n opens a virtual element.
func IsVirtualStart(n *html.Node) bool {
	return n != nil && n.Type == html.CommentNode && startCommentRegex.MatchString(n.Data)
}

// IsVirtualEnd reports whether n closes a virtual element.
func IsVirtualEnd(n *html.Node) bool {
	return n != nil && n.Type == html.CommentNode && endCommentRegex.MatchString(n.Data)
}

// VirtualValue returns the binding text of a virtual element start comment.
func VirtualValue(n *html.Node) string {
	m := startCommentRegex.FindStringSubmatch(n.Data)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// VirtualEnd returns the comment closing the virtual element opened by start,
// or nil if it is unbalanced.
func VirtualEnd(start *html.Node) *html.Node {
	depth := 1
	for n := start.NextSibling; n != nil; n = n.NextSibling {
		switch {
		case IsVirtualStart(n):
			depth++
		case IsVirtualEnd(n):
			depth--
			if depth == 0 {
				return n
			}
		}
	}
	return nil
}

// ChildNodes returns the children of an element or virtual element.
func ChildNodes(n *html.Node) []*html.Node {
	if !IsVirtualStart(n) {
		return Children(n)
	}
	end := VirtualEnd(n)
	var out []*html.Node
	for c := n.NextSibling; c != nil && c != end; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// FirstChild returns the first child of an element or virtual element.
func FirstChild(n *html.Node) *html.Node {
	if !IsVirtualStart(n) {
		return n.FirstChild
	}
	next := n.NextSibling
	if next == nil || next == VirtualEnd(n) {
		return nil
	}
	return next
}

// NextSibling returns the next sibling of n, stepping over the whole body of
// a virtual element that n opens. It returns nil at a closing comment.
func NextSibling(n *html.Node) *html.Node {
	if IsVirtualStart(n) {
		if end := VirtualEnd(n); end != nil {
			n = end
		}
	}
	if IsVirtualEnd(n.NextSibling) {
		return nil
	}
	return n.NextSibling
}

// EmptyNode removes every child of an element or virtual element, running
// disposal callbacks on them.
func EmptyNode(doc *Document, n *html.Node) {
	for _, c := range ChildNodes(n) {
		RemoveNode(doc, c)
	}
}

// MoveChildren detaches the children of an element or virtual element and
// appends them to dst without disposing them.
func MoveChildren(doc *Document, src, dst *html.Node) {
	for _, c := range ChildNodes(src) {
		doc.Detach(c)
		dst.AppendChild(c)
	}
}

// Prepend inserts child as the first child of an element or virtual element.
func Prepend(container, child *html.Node) {
	detach(child)
	if IsVirtualStart(container) {
		container.Parent.InsertBefore(child, container.NextSibling)
		return
	}
	container.InsertBefore(child, container.FirstChild)
}

// InsertAfter inserts child after ref inside an element or virtual element.
// A nil ref prepends.
func InsertAfter(container, child, ref *html.Node) {
	if ref == nil {
		Prepend(container, child)
		return
	}
	detach(child)
	ref.Parent.InsertBefore(child, ref.NextSibling)
}

// SetChildren replaces the children of an element or virtual element.
func SetChildren(doc *Document, container *html.Node, children []*html.Node) {
	EmptyNode(doc, container)
	var last *html.Node
	for _, c := range children {
		InsertAfter(container, c, last)
		last = c
	}
}
