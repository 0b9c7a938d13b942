package ics

import (
	"time"

	"meetgrid/internal/expand"
)

// FreeTokens returns the tokens of instants whose [t, t+slotLength) does not
// touch any busy interval, in instant order.
func FreeTokens(instants []expand.Instant, busy []Interval, slotLength time.Duration) []string {
	out := make([]string, 0, len(instants))
	for _, in := range instants {
		if !overlapsAny(in.Time, in.Time.Add(slotLength), busy) {
			out = append(out, in.Token)
		}
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Span returns the range covered by instants with one slot of padding at the
// end; it is the window ExpandBusy needs for FreeTokens.
func Span(instants []expand.Instant, slotLength time.Duration) (time.Time, time.Time, bool) {
	if len(instants) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return instants[0].Time, instants[len(instants)-1].Time.Add(slotLength), true
}
