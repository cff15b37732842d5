package transform

import (
	"sort"
	"time"
)

// maxDUT1 bounds |UT1-UTC|; IERS keeps it under 0.9 s by inserting leap seconds.
const maxDUT1 = 900 * time.Millisecond

// Offset is a UT1-UTC value that applies from an instant onward.
type Offset struct {
	From time.Time
	DUT1 time.Duration
}

// TimeScale maps UTC instants to UT1. It is immutable; the zero value treats
// UT1 and UTC as identical, which is the assumption SGP4 element sets are
// generated under.
type TimeScale struct {
	offsets []Offset
}

// NewTimeScale builds a TimeScale from a table of offsets. The input is copied
// and sorted; values outside ±0.9 s are clamped.
func NewTimeScale(offsets ...Offset) TimeScale {
	if len(offsets) == 0 {
		return TimeScale{}
	}
	table := make([]Offset, len(offsets))
	for i, o := range offsets {
		table[i] = Offset{From: o.From.UTC(), DUT1: clampDUT1(o.DUT1)}
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].From.Before(table[j].From)
	})
	return TimeScale{offsets: table}
}

// FixedDUT1 returns a TimeScale with a single offset valid at all times.
func FixedDUT1(dut1 time.Duration) TimeScale {
	if dut1 == 0 {
		return TimeScale{}
	}
	return TimeScale{offsets: []Offset{{DUT1: clampDUT1(dut1)}}}
}

// DUT1 returns UT1-UTC at t. Before the first table entry the first value is used.
func (ts TimeScale) DUT1(t time.Time) time.Duration {
	if len(ts.offsets) == 0 {
		return 0
	}
	i := sort.Search(len(ts.offsets), func(i int) bool {
		return ts.offsets[i].From.After(t)
	})
	if i == 0 {
		return ts.offsets[0].DUT1
	}
	return ts.offsets[i-1].DUT1
}

// UT1 returns t shifted onto the UT1 scale.
func (ts TimeScale) UT1(t time.Time) time.Time {
	t = t.UTC()
	return t.Add(ts.DUT1(t))
}

func clampDUT1(d time.Duration) time.Duration {
	switch {
	case d > maxDUT1:
		return maxDUT1
	case d < -maxDUT1:
		return -maxDUT1
	}
	return d
}
