package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "meetgrid/internal/log"
)

// BusyEvent is a VEVENT reduced to what matters for availability: when it
// blocks time and how it repeats. Events marked TRANSP:TRANSPARENT are
// dropped during parsing since they do not block time.
type BusyEvent struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
}

// ParseBusy parses an ICS payload into busy events. Broken VEVENTs are
// logged and skipped; a broken calendar is an error.
func ParseBusy(source string, body []byte) ([]BusyEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "source", source)
		return nil, err
	}

	events := make([]BusyEvent, 0)
	for _, comp := range cal.Events() {
		ev, ok, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "source", source)
			continue
		}
		if ok {
			events = append(events, ev)
		}
	}

	appLog.Debug("ics parse completed", "source", source, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (BusyEvent, bool, error) {
	var out BusyEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, false, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty("TRANSP"); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return out, false, nil
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, false, err
	}
	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		// No DTEND: a timed event is instantaneous and an all-day one lasts
		// the day; either way give it the day so it still blocks something.
		end = start.Add(24 * time.Hour)
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, start.Location()); err == nil {
			out.Recurrence = &t
		}
	}

	return out, true, nil
}

// parseICSTime handles the bare DATE / DATE-TIME / UTC forms used by EXDATE
// and RECURRENCE-ID. Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
