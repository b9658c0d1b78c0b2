package availability

import (
	"testing"
	"time"
)

var day = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestOverlaps(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(9, 30)}
	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"identical", a, true},
		{"touching after", Interval{Start: at(9, 30), End: at(10, 0)}, false},
		{"touching before", Interval{Start: at(8, 30), End: at(9, 0)}, false},
		{"partial", Interval{Start: at(9, 15), End: at(9, 45)}, true},
		{"contained", Interval{Start: at(9, 10), End: at(9, 20)}, true},
		{"disjoint", Interval{Start: at(11, 0), End: at(11, 30)}, false},
	}
	for _, tc := range cases {
		if got := Overlaps(a, tc.b); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
		if Overlaps(tc.b, a) != tc.want {
			t.Fatalf("%s: overlap must be symmetric", tc.name)
		}
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates(at(9, 0), at(11, 0), 30*time.Minute)
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
	if !got[1].Start.Equal(at(9, 30)) || !got[3].End.Equal(at(11, 0)) {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	// 09:00-10:20 leaves a 20 minute tail which is dropped.
	if got := Candidates(at(9, 0), at(10, 20), 30*time.Minute); len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if Candidates(at(10, 0), at(9, 0), 30*time.Minute) != nil {
		t.Fatal("inverted range must yield nothing")
	}
}

func TestSetOverlapping(t *testing.T) {
	s := NewSet(
		Interval{Start: at(10, 0), End: at(10, 30)},
		Interval{Start: at(9, 0), End: at(9, 30)},
		Interval{Start: at(9, 45), End: at(10, 15)},
	)
	if !s.OverlapsAny(Interval{Start: at(9, 0), End: at(9, 10)}) {
		t.Fatal("entry inserted out of order was lost")
	}

	hits := s.Overlapping(Interval{Start: at(9, 30), End: at(10, 0)})
	if len(hits) != 1 || !hits[0].Start.Equal(at(9, 45)) {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if s.OverlapsAny(Interval{Start: at(10, 30), End: at(11, 0)}) {
		t.Fatal("touching interval must not overlap")
	}
	if !s.OverlapsAny(Interval{Start: at(10, 10), End: at(10, 40)}) {
		t.Fatal("expected overlap with 10:00 and 09:45 entries")
	}
}
