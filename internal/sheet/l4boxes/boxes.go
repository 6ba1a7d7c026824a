package l4boxes

import (
	"cmp"
	"slices"

	"github.com/banshee-data/itemsheet/internal/sheet"
)

// MergeStats describes one Merge call.
type MergeStats struct {
	Passes int // full pairwise passes, including the final pass with no merges
	Merges int // number of absorbed boxes
}

// Merge unites boxes that lie within gap pixels of each other.
//
// Box A absorbs box B when A's bounds, expanded by gap on every side,
// intersect B's original bounds; the result is the coordinate-wise union
// with summed area. Each pass walks the boxes in order and lets the current
// accumulator keep growing while it scans the remaining boxes. Passes repeat
// until one performs no merge. The box count strictly decreases on every
// pass that merges, so the loop terminates.
//
// At the fixpoint no pair of returned boxes satisfies the merge predicate.
// The input slice is not modified. A negative gap is treated as zero.
func Merge(boxes []sheet.Box, gap int) []sheet.Box {
	out, _ := MergeWithStats(boxes, gap)
	return out
}

// MergeWithStats is Merge plus pass and merge counters.
func MergeWithStats(boxes []sheet.Box, gap int) ([]sheet.Box, MergeStats) {
	gap = max(gap, 0)
	merged := slices.Clone(boxes)
	var stats MergeStats

	for {
		stats.Passes++
		changed := false
		next := make([]sheet.Box, 0, len(merged))
		used := make([]bool, len(merged))

		for i := range merged {
			if used[i] {
				continue
			}
			used[i] = true
			acc := merged[i]
			for j := range merged {
				if used[j] {
					continue
				}
				if acc.Expand(gap).Intersects(merged[j]) {
					acc = acc.Union(merged[j])
					used[j] = true
					changed = true
					stats.Merges++
				}
			}
			next = append(next, acc)
		}

		merged = next
		if !changed {
			return merged, stats
		}
	}
}

// FilterSize drops boxes narrower than minW or shorter than minH and reports
// how many were dropped.
func FilterSize(boxes []sheet.Box, minW, minH int) ([]sheet.Box, int) {
	kept := make([]sheet.Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Width() < minW || b.Height() < minH {
			continue
		}
		kept = append(kept, b)
	}
	return kept, len(boxes) - len(kept)
}

// Order sorts boxes by top edge, then left edge, ascending. The sort is
// stable, so the result depends only on the box values.
func Order(boxes []sheet.Box) []sheet.Box {
	out := slices.Clone(boxes)
	slices.SortStableFunc(out, func(a, b sheet.Box) int {
		if c := cmp.Compare(a.Y1, b.Y1); c != 0 {
			return c
		}
		return cmp.Compare(a.X1, b.X1)
	})
	return out
}

// Records assigns 1-based indices in the given order.
func Records(ordered []sheet.Box) []sheet.ObjectRecord {
	recs := make([]sheet.ObjectRecord, len(ordered))
	for i, b := range ordered {
		recs[i] = sheet.ObjectRecord{Index: i + 1, Box: b}
	}
	return recs
}
