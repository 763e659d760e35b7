package observable

import "github.com/livefir/livebind/internal/identity"

// Status classifies a change record.
type Status string

const (
	Added    Status = "added"
	Deleted  Status = "deleted"
	Retained Status = "retained"
)

// Record describes one element-level change of an array. Deleted indexes
// refer to the array before the change and added indexes to the array after
// it. When IsMoved is set, Moved holds the index of the counterpart record
// (the same value deleted or added elsewhere in the same change set).
type Record struct {
	Status  Status
	Index   int
	Value   any
	Moved   int
	IsMoved bool
}

// CompareOptions tunes CompareArrays.
type CompareOptions struct {
	// Sparse omits retained records.
	Sparse bool
	// DontLimitMoves searches every pair for moves instead of giving up after
	// a bounded number of failed comparisons.
	DontLimitMoves bool
}

// CompareArrays computes the edit script turning oldItems into newItems.
// Records are ordered by position; within each status the indexes ascend.
func CompareArrays(oldItems, newItems []any, opts CompareOptions) []Record {
	if len(oldItems) < len(newItems) {
		return compareSmallToBig(oldItems, newItems, Added, Deleted, opts)
	}
	return compareSmallToBig(newItems, oldItems, Deleted, Added, opts)
}

// distanceRow is one row of the edit distance matrix. Only the columns
// inside the comparison band are stored.
type distanceRow struct {
	lo    int
	cells []int
}

func (r distanceRow) at(j int) (int, bool) {
	if j < r.lo || j >= r.lo+len(r.cells) {
		return 0, false
	}
	return r.cells[j-r.lo], true
}

// editDistance fills the banded edit distance matrix between sml and big.
// Row i holds columns i-1 through i+len(big)-len(sml) (at least one), so
// the cost grows with len(sml) times the length difference rather than
// with the product of the lengths. Each cell is one more than the edit
// distance between sml[:i] and big[:j]; cells outside the band count as
// unreachable.
func editDistance(sml, big []any) []distanceRow {
	smlMax, bigMax := len(sml), len(big)
	compareRange := bigMax - smlMax
	if compareRange == 0 {
		compareRange = 1
	}
	maxDistance := smlMax + bigMax + 1
	orMax := func(v int, ok bool) int {
		if !ok {
			return maxDistance
		}
		return v
	}

	rows := make([]distanceRow, smlMax+1)
	for i := 0; i <= smlMax; i++ {
		lo, hi := max(0, i-1), min(bigMax, i+compareRange)
		row := distanceRow{lo: lo, cells: make([]int, hi-lo+1)}
		for j := lo; j <= hi; j++ {
			var d int
			switch {
			case j == 0:
				d = i + 1
			case i == 0:
				d = j + 1
			case identity.Same(sml[i-1], big[j-1]):
				d, _ = rows[i-1].at(j - 1)
			default:
				north := orMax(rows[i-1].at(j))
				west := orMax(row.at(j - 1))
				d = min(north, west) + 1
			}
			row.cells[j-lo] = d
		}
		rows[i] = row
	}
	return rows
}

func compareSmallToBig(sml, big []any, notInSml, notInBig Status, opts CompareOptions) []Record {
	smlMax, bigMax := len(sml), len(big)
	distance := editDistance(sml, big)

	var script []Record
	var inSml, inBig []int
	for i, j := smlMax, bigMax; i > 0 || j > 0; {
		me, _ := distance[i].at(j)
		me--
		west, westOK := distance[i].at(j - 1)
		var north int
		northOK := false
		if i > 0 {
			north, northOK = distance[i-1].at(j)
		}
		switch {
		case j > 0 && westOK && me == west:
			j--
			inSml = append(inSml, len(script))
			script = append(script, Record{Status: notInSml, Value: big[j], Index: j})
		case northOK && me == north:
			i--
			inBig = append(inBig, len(script))
			script = append(script, Record{Status: notInBig, Value: sml[i], Index: i})
		default:
			i--
			j--
			if !opts.Sparse {
				script = append(script, Record{Status: Retained, Value: big[j], Index: j})
			}
		}
	}

	limit := 0
	if !opts.DontLimitMoves {
		limit = smlMax * 10
	}
	findMoves(script, inBig, inSml, limit)

	for l, r := 0, len(script)-1; l < r; l, r = l+1, r-1 {
		script[l], script[r] = script[r], script[l]
	}
	return script
}

// findMoves pairs records of the same value across the two sides, marking
// each with its counterpart's index. A zero limit means unlimited.
func findMoves(script []Record, left, right []int, limit int) {
	if len(left) == 0 || len(right) == 0 {
		return
	}
	right = append([]int(nil), right...)
	failed := 0
	for l := 0; (limit == 0 || failed < limit) && l < len(left); l++ {
		leftItem := &script[left[l]]
		r := 0
		for ; r < len(right); r++ {
			rightItem := &script[right[r]]
			if identity.Same(leftItem.Value, rightItem.Value) {
				leftItem.Moved, leftItem.IsMoved = rightItem.Index, true
				rightItem.Moved, rightItem.IsMoved = leftItem.Index, true
				right = append(right[:r], right[r+1:]...)
				r = 0
				failed = 0
				break
			}
		}
		failed += r
	}
}
