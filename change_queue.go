package livebind

import (
	"fmt"

	"github.com/livefir/livebind/internal/observable"
)

// ChangeKind tags an entry of the change queue.
type ChangeKind int

const (
	// ChangeAdded inserts Values at Index.
	ChangeAdded ChangeKind = iota
	// ChangeDeleted removes the item at Index of the pre-change array.
	ChangeDeleted
	// ChangeClearDeletedIndexes compacts the node ranges of the deletions
	// queued since the previous marker.
	ChangeClearDeletedIndexes
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeClearDeletedIndexes:
		return "clearDeletedIndexes"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is one queued reconciliation step.
type Change struct {
	Kind  ChangeKind
	Index int
	// Value is the deleted item.
	Value any
	// Values are the added items, in order, starting at Index.
	Values []any
	// IsBatch is set when several contiguous additions were collapsed.
	IsBatch bool
}

// hasIndex reports whether the change refers to an array position.
func (c Change) hasIndex() bool {
	return c.Kind != ChangeClearDeletedIndexes
}

// lastIndex returns the position of the last value of an addition.
func (c Change) lastIndex() int {
	return c.Index + len(c.Values) - 1
}

// coalesce rewrites one notification into queue order: every deletion, a
// clear marker if there were any, then the additions. An addition directly
// following the previous one's last index extends it into a batch, even when
// a deletion sits between the two records.
func coalesce(records []observable.Record) []Change {
	var added, deleted []Change
	for _, r := range records {
		switch r.Status {
		case observable.Deleted:
			deleted = append(deleted, Change{Kind: ChangeDeleted, Index: r.Index, Value: r.Value})

		case observable.Added:
			if n := len(added); n > 0 && added[n-1].lastIndex()+1 == r.Index {
				added[n-1].Values = append(added[n-1].Values, r.Value)
				added[n-1].IsBatch = true
				continue
			}
			added = append(added, Change{Kind: ChangeAdded, Index: r.Index, Values: []any{r.Value}})
		}
	}

	queue := make([]Change, 0, len(deleted)+len(added)+1)
	if len(deleted) > 0 {
		queue = append(queue, deleted...)
		queue = append(queue, Change{Kind: ChangeClearDeletedIndexes})
	}
	return append(queue, added...)
}
