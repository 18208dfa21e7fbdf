package pkgid

import "sort"

// interval is a single half-open version range [low, high). highInf marks
// an unbounded upper end (the "+X.Y.Z" shorthand), in which case high is
// never read.
type interval struct {
	low     Version
	high    Version
	highInf bool
}

// highLess reports whether a's upper bound is strictly less than b's upper
// bound, treating highInf as greater than anything finite.
func highLess(a, b interval) bool {
	if a.highInf {
		return false
	}
	if b.highInf {
		return true
	}
	return a.high.Less(b.high)
}

func maxHigh(a, b interval) (high Version, inf bool) {
	if highLess(a, b) {
		return b.high, b.highInf
	}
	return a.high, a.highInf
}

func minHigh(a, b interval) (high Version, inf bool) {
	if highLess(a, b) {
		return a.high, a.highInf
	}
	return b.high, b.highInf
}

func (iv interval) containsVersion(v Version) bool {
	if v.Less(iv.low) {
		return false
	}
	if iv.highInf {
		return true
	}
	return v.Less(iv.high)
}

// isEmptyInterval reports whether the half-open range is vacuous.
func isEmptyInterval(low, high Version, highInf bool) bool {
	return !highInf && !low.Less(high)
}

// overlapsOrTouches reports whether two intervals overlap or are adjacent
// (share a boundary), meaning they can be merged into one without changing
// membership.
func overlapsOrTouches(a, b interval) bool {
	// a must start at or before b's end, and b must start at or before a's
	// end, for the two (inclusive-of-touching) ranges to merge.
	aEndsBeforeB := !a.highInf && a.high.Less(b.low)
	bEndsBeforeA := !b.highInf && b.high.Less(a.low)
	return !aEndsBeforeB && !bEndsBeforeA
}

func mergeTouching(a, b interval) interval {
	low := a.low
	if b.low.Less(low) {
		low = b.low
	}
	high, inf := maxHigh(a, b)
	return interval{low: low, high: high, highInf: inf}
}

// VersionRangeSet is a finite union of half-open version intervals,
// maintained sorted and merged so that semantically equal sets always have
// the same internal representation after any constructor/operation.
type VersionRangeSet struct {
	ivs []interval
}

// Empty returns the unsatisfiable range set.
func Empty() VersionRangeSet { return VersionRangeSet{} }

// NewRange returns the set {v : low <= v < high}. If high is not strictly
// greater than low, the result is Empty.
func NewRange(low, high Version) VersionRangeSet {
	if isEmptyInterval(low, high, false) {
		return Empty()
	}
	return VersionRangeSet{ivs: []interval{{low: low, high: high}}}
}

// NewUnbounded returns the set {v : v >= low}.
func NewUnbounded(low Version) VersionRangeSet {
	return VersionRangeSet{ivs: []interval{{low: low, highInf: true}}}
}

// NewExact returns the single-version set {v}, via the half-open range
// spanning exactly v's patch tick. This matches the "=X.Y.Z" shorthand,
// which never carries a prerelease tag.
func NewExact(v Version) VersionRangeSet {
	return NewRange(v, NewVersion(v.Major(), v.Minor(), v.Patch()+1, ""))
}

func (s VersionRangeSet) IsEmpty() bool { return len(s.ivs) == 0 }

// Contains reports whether v falls within any interval of s.
func (s VersionRangeSet) Contains(v Version) bool {
	for _, iv := range s.ivs {
		if iv.containsVersion(v) {
			return true
		}
	}
	return false
}

func normalize(ivs []interval) []interval {
	if len(ivs) == 0 {
		return nil
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].low.Less(ivs[j].low) })
	out := make([]interval, 0, len(ivs))
	cur := ivs[0]
	for _, iv := range ivs[1:] {
		if overlapsOrTouches(cur, iv) {
			cur = mergeTouching(cur, iv)
		} else {
			out = append(out, cur)
			cur = iv
		}
	}
	out = append(out, cur)
	return out
}

// Union returns the set of versions accepted by either s or o.
func (s VersionRangeSet) Union(o VersionRangeSet) VersionRangeSet {
	merged := append(append([]interval{}, s.ivs...), o.ivs...)
	return VersionRangeSet{ivs: normalize(merged)}
}

// Intersect returns the set of versions accepted by both s and o.
func (s VersionRangeSet) Intersect(o VersionRangeSet) VersionRangeSet {
	var out []interval
	for _, a := range s.ivs {
		for _, b := range o.ivs {
			if iv, ok := intersectPair(a, b); ok {
				out = append(out, iv)
			}
		}
	}
	return VersionRangeSet{ivs: normalize(out)}
}

func intersectPair(a, b interval) (interval, bool) {
	// low is the later (max) of the two starts.
	low := a.low
	if a.low.Less(b.low) {
		low = b.low
	}

	high, inf := minHigh(a, b)
	if isEmptyInterval(low, high, inf) {
		return interval{}, false
	}
	return interval{low: low, high: high, highInf: inf}, true
}

// Difference returns the set of versions accepted by s but not by o.
func (s VersionRangeSet) Difference(o VersionRangeSet) VersionRangeSet {
	result := s
	for _, b := range o.ivs {
		result = result.subtractOne(b)
	}
	return result
}

func (s VersionRangeSet) subtractOne(b interval) VersionRangeSet {
	var out []interval
	for _, a := range s.ivs {
		out = append(out, subtractFromInterval(a, b)...)
	}
	return VersionRangeSet{ivs: normalize(out)}
}

// subtractFromInterval computes a \ b for two intervals, returning zero,
// one, or two resulting intervals.
func subtractFromInterval(a, b interval) []interval {
	if !overlapsOrTouchesOpen(a, b) {
		return []interval{a}
	}

	var out []interval
	// Left remainder: [a.low, b.low), if b starts after a does.
	if a.low.Less(b.low) {
		out = append(out, interval{low: a.low, high: b.low})
	}
	// Right remainder: [b.high, a.high), if b ends before a does.
	if !b.highInf {
		if a.highInf {
			out = append(out, interval{low: b.high, highInf: true})
		} else if b.high.Less(a.high) {
			out = append(out, interval{low: b.high, high: a.high})
		}
	}
	return out
}

// overlapsOrTouchesOpen reports whether a and b share any version at all
// (strict overlap, not mere adjacency -- used for subtraction, where
// touching-but-disjoint intervals must NOT be merged away).
func overlapsOrTouchesOpen(a, b interval) bool {
	aEndsAtOrBeforeB := !a.highInf && !b.low.Less(a.high)
	bEndsAtOrBeforeA := !b.highInf && !a.low.Less(b.high)
	return !aEndsAtOrBeforeB && !bEndsAtOrBeforeA
}

// Disjoint reports whether s and o share no versions.
func (s VersionRangeSet) Disjoint(o VersionRangeSet) bool {
	return s.Intersect(o).IsEmpty()
}

// ContainsRange reports whether every version accepted by o is also
// accepted by s.
func (s VersionRangeSet) ContainsRange(o VersionRangeSet) bool {
	return o.Difference(s).IsEmpty()
}

// Equal reports whether s and o describe the same set of versions.
func (s VersionRangeSet) Equal(o VersionRangeSet) bool {
	return s.ContainsRange(o) && o.ContainsRange(s)
}

// Bounds returns the overall low bound and, unless the set is unbounded
// above, the overall high bound of s. It is meant for serializing the
// single-interval ranges a manifest dependency actually carries (a
// `versions: [{low,high},...]` list is a union of such ranges, but each
// accepted dependency range collapses to one low/high pair); callers
// working with a set that may hold multiple disjoint intervals should
// use ivs via Union instead of relying on this summary. Bounds on an
// Empty set returns the zero Version and unbounded=false.
func (s VersionRangeSet) Bounds() (low, high Version, unbounded bool) {
	if len(s.ivs) == 0 {
		return Version{}, Version{}, false
	}
	low = s.ivs[0].low
	last := s.ivs[len(s.ivs)-1]
	return low, last.high, last.highInf
}
