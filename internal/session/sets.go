package session

import "sort"

// Index sets are stored as sorted, de-duplicated int slices so they serialize
// deterministically and diff cleanly in the API responses.

func AddIndex(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	if pos < len(set) && set[pos] == i {
		return set
	}
	out := make([]int, 0, len(set)+1)
	out = append(out, set[:pos]...)
	out = append(out, i)
	out = append(out, set[pos:]...)
	return out
}

func RemoveIndex(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	if pos >= len(set) || set[pos] != i {
		return set
	}
	out := make([]int, 0, len(set)-1)
	out = append(out, set[:pos]...)
	out = append(out, set[pos+1:]...)
	return out
}

func ContainsIndex(set []int, i int) bool {
	pos := sort.SearchInts(set, i)
	return pos < len(set) && set[pos] == i
}
