package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"meetgrid/internal/expand"
)

// ExportOptions describes the exported calendar.
type ExportOptions struct {
	Name       string
	SlotLength time.Duration
	// Stamp is written as DTSTAMP; callers pass their clock's now so the
	// output is reproducible.
	Stamp time.Time
}

// Export renders instants as a PUBLISH calendar with one VEVENT per instant.
// The UID is the slot token, so re-imports map back to the same slot.
func Export(instants []expand.Instant, opts ExportOptions) []byte {
	if opts.SlotLength <= 0 {
		opts.SlotLength = 15 * time.Minute
	}
	name := opts.Name
	if name == "" {
		name = "Meeting"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//meetgrid//slots//EN")
	cal.SetName(name)

	for _, in := range instants {
		ev := cal.AddEvent(in.Token + "@meetgrid")
		ev.SetDtStampTime(opts.Stamp.UTC())
		ev.SetStartAt(in.Time.UTC())
		ev.SetEndAt(in.Time.Add(opts.SlotLength).UTC())
		ev.SetSummary(name)
	}

	return []byte(cal.Serialize())
}
