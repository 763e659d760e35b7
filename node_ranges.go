package livebind

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/observable"
)

// NodeRange is the span of top-level nodes rendered for one item. First and
// Last are nil when the template rendered nothing.
type NodeRange struct {
	First *html.Node
	Last  *html.Node
}

// Nodes walks the siblings from First to Last. It stops early if the chain
// was cut by an external removal.
func (r NodeRange) Nodes() []*html.Node {
	if r.First == nil {
		return nil
	}
	var nodes []*html.Node
	for n := r.First; n != nil; n = n.NextSibling {
		nodes = append(nodes, n)
		if n == r.Last {
			break
		}
	}
	return nodes
}

// nodeset is a rendered item that can be moved as a unit: its nodes plus the
// $index observable of the context the nodes were bound with.
type nodeset struct {
	nodes []*html.Node
	index *observable.Observable[int]
}

func (s nodeset) bounds() NodeRange {
	if len(s.nodes) == 0 {
		return NodeRange{}
	}
	return NodeRange{First: s.nodes[0], Last: s.nodes[len(s.nodes)-1]}
}

type rangeEntry struct {
	NodeRange
	index *observable.Observable[int]
}

// nodeRangeIndex maps array positions to their node ranges.
type nodeRangeIndex struct {
	entries []rangeEntry
}

func (x *nodeRangeIndex) len() int {
	return len(x.entries)
}

func (x *nodeRangeIndex) at(i int) rangeEntry {
	return x.entries[i]
}

// insert records set as the item at position i.
func (x *nodeRangeIndex) insert(i int, set nodeset) {
	i = min(max(i, 0), len(x.entries))
	x.entries = slices.Insert(x.entries, i, rangeEntry{NodeRange: set.bounds(), index: set.index})
}

// nodesAt returns the live nodes of the item at position i.
func (x *nodeRangeIndex) nodesAt(i int) nodeset {
	if i < 0 || i >= len(x.entries) {
		return nodeset{}
	}
	e := x.entries[i]
	return nodeset{nodes: e.Nodes(), index: e.index}
}

// lastNodeBefore returns the node new content for position i goes after, or
// nil when it belongs at the start. Items that rendered nothing, or whose
// nodes were all removed by other code, are skipped.
func (x *nodeRangeIndex) lastNodeBefore(i int) *html.Node {
	for j := min(i, len(x.entries)) - 1; j >= 0; j-- {
		e := x.entries[j]
		if e.Last != nil && e.Last.Parent != nil {
			return e.Last
		}
		if e.First == nil || e.First.Parent == nil {
			continue
		}
		// Last was removed: the range ends before the next item's nodes.
		stop := x.firstAttachedFrom(j + 1)
		last := e.First
		for n := e.First.NextSibling; n != nil && n != stop; n = n.NextSibling {
			last = n
		}
		return last
	}
	return nil
}

func (x *nodeRangeIndex) firstAttachedFrom(i int) *html.Node {
	for ; i < len(x.entries); i++ {
		if first := x.entries[i].First; first != nil && first.Parent != nil {
			return first
		}
	}
	return nil
}

// removeAll splices out the given positions, highest first so earlier
// positions stay valid.
func (x *nodeRangeIndex) removeAll(positions []int) {
	sorted := slices.Clone(positions)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		if p < 0 || p >= len(x.entries) {
			continue
		}
		x.entries = slices.Delete(x.entries, p, p+1)
	}
}

func (x *nodeRangeIndex) snapshot() []NodeRange {
	out := make([]NodeRange, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.NodeRange
	}
	return out
}
