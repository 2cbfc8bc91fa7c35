package dataset

import (
	"iter"
	"slices"
)

// Range is a closed identifier interval [Min, Max]. Because ranges are
// computed over the sorted ID set, inequality bounds are enough for a store
// to select exactly the chunk's members — no set-membership predicate needed.
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether id falls within the range.
func (r Range) Contains(id int64) bool { return id >= r.Min && id <= r.Max }

// Ranges yields closed sub-ranges over the sorted identifier set, each
// covering exactly chunkSize identifiers except possibly the last. The
// ranges are contiguous and non-overlapping relative to the sorted set, and
// together they cover the input set exactly. Boundaries follow sorted
// positions, not raw arithmetic gaps: {1,2,3,4,5,7,9} at size 3 yields
// [1,3] [4,7] [9,9].
//
// The sequence is lazy, finite, and non-restartable. chunkSize must be
// positive; ids need not be pre-sorted (a sorted copy is taken).
func Ranges(ids []int64, chunkSize int) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		if chunkSize <= 0 || len(ids) == 0 {
			return
		}
		sorted := slices.Clone(ids)
		slices.Sort(sorted)
		for start := 0; start < len(sorted); start += chunkSize {
			end := min(start+chunkSize, len(sorted)) - 1
			if !yield(Range{Min: sorted[start], Max: sorted[end]}) {
				return
			}
		}
	}
}
