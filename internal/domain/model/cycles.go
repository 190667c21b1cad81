package model

import "slices"

// DefaultCycle returns the cycle selected when a watch is chosen: the
// highest known cycle, or 0 when the watch has none.
func DefaultCycle(cycles []int) int {
	if len(cycles) == 0 {
		return 0
	}
	return slices.Max(cycles)
}

// NextCycle returns the number a newly created cycle receives: one past
// the highest known cycle, or 0 when the watch has none.
func NextCycle(cycles []int) int {
	if len(cycles) == 0 {
		return 0
	}
	return slices.Max(cycles) + 1
}

// SortedCycles returns an ascending copy of cycles without duplicates.
func SortedCycles(cycles []int) []int {
	out := slices.Clone(cycles)
	slices.Sort(out)
	return slices.Compact(out)
}

// MergeCycles returns the sorted union of a and b.
func MergeCycles(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return SortedCycles(out)
}
