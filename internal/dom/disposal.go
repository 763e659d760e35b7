package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// nodeData is the per-node side table: arbitrary keyed values plus disposal
// callbacks run when the node is cleaned.
type nodeData struct {
	values   map[string]any
	disposal []disposeEntry
}

type disposeEntry struct {
	id int
	fn func()
}

var (
	dataMu     sync.Mutex
	dataByNode = make(map[*html.Node]*nodeData)
	nextID     int
)

func dataFor(n *html.Node, create bool) *nodeData {
	d := dataByNode[n]
	if d == nil && create {
		d = &nodeData{}
		dataByNode[n] = d
	}
	return d
}

// SetData stores a value on n under key.
func SetData(n *html.Node, key string, v any) {
	dataMu.Lock()
	defer dataMu.Unlock()
	d := dataFor(n, true)
	if d.values == nil {
		d.values = make(map[string]any)
	}
	d.values[key] = v
}

// GetData returns the value stored on n under key.
func GetData(n *html.Node, key string) (any, bool) {
	dataMu.Lock()
	defer dataMu.Unlock()
	d := dataFor(n, false)
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// AddDisposeCallback registers fn to run when n is cleaned. The returned id
// can be passed to RemoveDisposeCallback.
func AddDisposeCallback(n *html.Node, fn func()) int {
	dataMu.Lock()
	defer dataMu.Unlock()
	nextID++
	d := dataFor(n, true)
	d.disposal = append(d.disposal, disposeEntry{id: nextID, fn: fn})
	return nextID
}

// RemoveDisposeCallback unregisters a callback added with AddDisposeCallback.
func RemoveDisposeCallback(n *html.Node, id int) {
	dataMu.Lock()
	defer dataMu.Unlock()
	d := dataFor(n, false)
	if d == nil {
		return
	}
	for i, e := range d.disposal {
		if e.id == id {
			d.disposal = append(d.disposal[:i], d.disposal[i+1:]...)
			return
		}
	}
}

// HasData reports whether anything is stored for n.
func HasData(n *html.Node) bool {
	dataMu.Lock()
	defer dataMu.Unlock()
	return dataByNode[n] != nil
}

// CleanNode runs the disposal callbacks of n and its descendants and drops
// their stored data. The nodes stay where they are.
func CleanNode(n *html.Node) {
	if n == nil {
		return
	}
	if n.Type != html.ElementNode && n.Type != html.CommentNode && n.Type != html.TextNode {
		return
	}
	cleanSingle(n)
	if n.Type == html.ElementNode {
		// Callbacks may remove descendants, so snapshot first.
		var descendants []*html.Node
		var walk func(*html.Node)
		walk = func(p *html.Node) {
			for c := p.FirstChild; c != nil; c = c.NextSibling {
				descendants = append(descendants, c)
				walk(c)
			}
		}
		walk(n)
		for _, d := range descendants {
			cleanSingle(d)
		}
	}
}

func cleanSingle(n *html.Node) {
	dataMu.Lock()
	d := dataByNode[n]
	delete(dataByNode, n)
	dataMu.Unlock()
	if d == nil {
		return
	}
	for _, e := range d.disposal {
		e.fn()
	}
}

// RemoveNode cleans n and detaches it from its parent.
func RemoveNode(doc *Document, n *html.Node) {
	CleanNode(n)
	doc.Detach(n)
}
