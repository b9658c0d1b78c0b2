package availability

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether a and b share any instant. Intervals that only
// touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Candidates walks [rangeStart, rangeEnd) in steps of length and returns every
// full interval that fits. A trailing remainder shorter than length is dropped.
func Candidates(rangeStart, rangeEnd time.Time, length time.Duration) []Interval {
	if length <= 0 || !rangeEnd.After(rangeStart) {
		return nil
	}
	var out []Interval
	for t := rangeStart; !t.Add(length).After(rangeEnd); t = t.Add(length) {
		out = append(out, Interval{Start: t, End: t.Add(length)})
	}
	return out
}

// Set holds intervals sorted by start. The zero value is empty and ready to use.
type Set struct {
	items []Interval
	// maxLen is the longest interval held; it bounds how far left an
	// overlapping interval can start.
	maxLen time.Duration
}

func NewSet(ivs ...Interval) *Set {
	s := &Set{}
	for _, iv := range ivs {
		s.Insert(iv)
	}
	return s
}

func (s *Set) Insert(iv Interval) {
	i := sort.Search(len(s.items), func(i int) bool { return !s.items[i].Start.Before(iv.Start) })
	s.items = append(s.items, Interval{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = iv
	if d := iv.Duration(); d > s.maxLen {
		s.maxLen = d
	}
}

// Overlapping returns the held intervals that overlap iv. Only entries whose
// start lies in (iv.Start-maxLen, iv.End) can overlap, so the scan begins at a
// binary-searched index.
func (s *Set) Overlapping(iv Interval) []Interval {
	if len(s.items) == 0 || !iv.Valid() {
		return nil
	}
	lo := iv.Start.Add(-s.maxLen)
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].Start.After(lo) })
	var out []Interval
	for ; i < len(s.items) && s.items[i].Start.Before(iv.End); i++ {
		if Overlaps(s.items[i], iv) {
			out = append(out, s.items[i])
		}
	}
	return out
}

func (s *Set) OverlapsAny(iv Interval) bool {
	return len(s.Overlapping(iv)) > 0
}
