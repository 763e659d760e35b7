package dom

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

// ErrNotNodes is returned when the insertion primitive is given something
// other than a node or a node slice.
var ErrNotNodes = errors.New("expected a single node or a node slice")

// InsertAllAfter inserts nodes (a *html.Node or []*html.Node) after ref inside
// container, or at its start when ref is nil. Moving nodes can drop focus, so
// if the focused element sat inside the inserted nodes it is focused again
// afterwards. It returns the inserted nodes.
func InsertAllAfter(doc *Document, container *html.Node, nodes any, ref *html.Node) ([]*html.Node, error) {
	var list []*html.Node
	switch v := nodes.(type) {
	case *html.Node:
		if v == nil {
			return nil, fmt.Errorf("insert after: %w", ErrNotNodes)
		}
		list = []*html.Node{v}
	case []*html.Node:
		list = v
	default:
		return nil, fmt.Errorf("insert after: %w (got %T)", ErrNotNodes, nodes)
	}
	if len(list) == 0 {
		return list, nil
	}

	var active *html.Node
	if focused := doc.ActiveElement(); focused != nil {
		for _, n := range list {
			if Contains(n, focused) {
				active = focused
				break
			}
		}
	}

	// Gather the nodes off-document first, the way a fragment would.
	for _, n := range list {
		doc.Detach(n)
	}
	last := ref
	for _, n := range list {
		InsertAfter(container, n, last)
		last = n
	}

	if active != nil && doc.ActiveElement() != active {
		doc.Focus(active)
	}
	return list, nil
}

// FixUpContinuousNodeArray brings a recorded run of sibling nodes back in
// line with the DOM: leading and trailing nodes that are no longer children of
// parent are dropped, and gaps between the first and last remaining node are
// filled from the live sibling chain.
func FixUpContinuousNodeArray(nodes []*html.Node, parent *html.Node) []*html.Node {
	if len(nodes) == 0 {
		return nodes
	}
	if parent.Type == html.CommentNode && parent.Parent != nil {
		parent = parent.Parent
	}

	for len(nodes) > 0 && nodes[0].Parent != parent {
		nodes = nodes[1:]
	}
	for len(nodes) > 1 && nodes[len(nodes)-1].Parent != parent {
		nodes = nodes[:len(nodes)-1]
	}

	if len(nodes) > 1 {
		first, last := nodes[0], nodes[len(nodes)-1]
		fixed := make([]*html.Node, 0, len(nodes))
		for current := first; current != nil && current != last; current = current.NextSibling {
			fixed = append(fixed, current)
		}
		nodes = append(fixed, last)
	}
	return nodes
}
