package slots

import "sort"

// Overlap names the first intersecting pair found, with their positions in
// the input slice.
type Overlap struct {
	First       Interval
	Second      Interval
	FirstIndex  int
	SecondIndex int
}

// FindOverlap returns the first pair of intersecting intervals after a stable
// sort by start time, or nil when the set is disjoint. Adjacent-pair scanning
// is sufficient: if any two intervals intersect, some neighbours do too.
func FindOverlap(intervals []Interval) *Overlap {
	if len(intervals) < 2 {
		return nil
	}
	order := make([]int, len(intervals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return intervals[order[a]].Start.Before(intervals[order[b]].Start)
	})
	for k := 0; k+1 < len(order); k++ {
		prev, next := intervals[order[k]], intervals[order[k+1]]
		if next.Start.Before(prev.End) {
			return &Overlap{
				First:       prev,
				Second:      next,
				FirstIndex:  order[k],
				SecondIndex: order[k+1],
			}
		}
	}
	return nil
}
