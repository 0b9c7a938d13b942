package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetgrid/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// Interval is a half-open busy span [Start, End) in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && iv.Start.Before(end)
}

// ExpandBusy turns busy events into concrete intervals intersecting
// [rangeStart, rangeEnd), applying RRULE, EXDATE and RECURRENCE-ID
// overrides. The result is sorted by start.
func ExpandBusy(events []BusyEvent, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("expand busy: range end is before range start")
	}

	base := make(map[string][]BusyEvent)
	overrides := make(map[string][]BusyEvent)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			base[ev.UID] = append(base[ev.UID], ev)
		}
	}

	out := make([]Interval, 0)
	for uid, evs := range base {
		for _, ev := range evs {
			if ev.RawRRule == "" {
				if iv := (Interval{ev.Start.UTC(), ev.End.UTC()}); iv.Overlaps(rangeStart, rangeEnd) {
					out = append(out, iv)
				}
				continue
			}
			out = append(out, expandRecurring(ev, overrides[uid], rangeStart, rangeEnd)...)
		}
	}

	// Overrides whose master is not in the feed still block their own time.
	for uid, ovs := range overrides {
		if _, ok := base[uid]; ok {
			continue
		}
		for _, ov := range ovs {
			if iv := (Interval{ov.Start.UTC(), ov.End.UTC()}); iv.Overlaps(rangeStart, rangeEnd) {
				out = append(out, iv)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandRecurring(ev BusyEvent, overrides []BusyEvent, rangeStart, rangeEnd time.Time) []Interval {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so occurrences that started
	// before rangeStart but are still running are included.
	dur := ev.End.Sub(ev.Start)
	starts := set.Between(rangeStart.Add(-dur).In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(starts) > defaultMaxOccurrencesPerEvent {
		appLog.Error("ics: truncated occurrences", errors.New("max occurrences reached"),
			"uid", ev.UID, "cap", defaultMaxOccurrencesPerEvent)
		starts = starts[:defaultMaxOccurrencesPerEvent]
	}

	out := make([]Interval, 0, len(starts))
	for _, s := range starts {
		iv := Interval{Start: s.UTC(), End: s.Add(dur).UTC()}
		if o, ok := findOverride(overrides, s); ok {
			iv = Interval{Start: o.Start.UTC(), End: o.End.UTC()}
		}
		if iv.Overlaps(rangeStart, rangeEnd) {
			out = append(out, iv)
		}
	}
	return out
}

func findOverride(overrides []BusyEvent, start time.Time) (BusyEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return BusyEvent{}, false
}
