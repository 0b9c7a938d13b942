package grid

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"meetgrid/internal/expand"
)

// TimeFormat selects the row/cell label style.
type TimeFormat string

const (
	Format12h TimeFormat = "12h"
	Format24h TimeFormat = "24h"
)

var ErrInvalidTimeFormat = errors.New("grid: time format must be 12h or 24h")

// ParseTimeFormat accepts "12h", "24h" and "" (12h).
func ParseTimeFormat(s string) (TimeFormat, error) {
	switch TimeFormat(s) {
	case "", Format12h:
		return Format12h, nil
	case Format24h:
		return Format24h, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
}

func (f TimeFormat) layout() string {
	if f == Format24h {
		return "15:04"
	}
	return "3:04 PM"
}

// Options for Build. A nil Location means UTC.
type Options struct {
	Locale     string
	TimeFormat TimeFormat
	Location   *time.Location
}

// Cell is a (day, time of day) that has a real instant.
type Cell struct {
	Token  string    `json:"token"`
	Time   time.Time `json:"time"`
	Label  string    `json:"label"`
	Minute int       `json:"minute"`
}

// Column is one local calendar day. Cells is aligned with Table.Rows; a nil
// entry means the day has no instant at that row.
type Column struct {
	Date         time.Time `json:"date"`
	DateLabel    string    `json:"date_label,omitempty"`
	WeekdayLabel string    `json:"weekday_label"`
	// GapBefore is set when the previous column is more than one day earlier.
	GapBefore bool    `json:"gap_before"`
	Cells     []*Cell `json:"cells"`
}

// Row is a shared time of day, or a spacer separating non-adjacent days.
// Spacer rows have no label and every column is nil there.
//
// Fold is 1 for the second pass through a wall time when clocks fall back.
// Both rows of such a pair carry their zone abbreviation in Zone and Label.
type Row struct {
	Spacer bool   `json:"spacer"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Fold   int    `json:"fold,omitempty"`
	Zone   string `json:"zone,omitempty"`
	Label  string `json:"label,omitempty"`
}

type rowKey struct {
	minute int
	fold   int
}

func (r Row) key() rowKey { return rowKey{minute: r.Hour*60 + r.Minute, fold: r.Fold} }

// Table is the presentation grid.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Empty reports whether there is nothing to render.
func (t Table) Empty() bool { return len(t.Columns) == 0 }

type day struct {
	year  int
	month time.Month
	dom   int
}

func (d day) midnight(loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.dom, 0, 0, 0, 0, loc)
}

// ordinal counts days without going through a zone that may have DST jumps.
func (d day) ordinal() int64 {
	return time.Date(d.year, d.month, d.dom, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Build lays instants out as a day-by-time grid in opts.Location.
func Build(instants []expand.Instant, opts Options) (Table, error) {
	format, err := ParseTimeFormat(string(opts.TimeFormat))
	if err != nil {
		return Table{}, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if len(instants) == 0 {
		return Table{Columns: []Column{}, Rows: []Row{}}, nil
	}
	locale := resolveLocale(opts.Locale)

	// Index lists for the two axes plus a sparse (day, row) lookup. Instants
	// are visited in UTC order so the repeated wall times of a DST fall-back
	// land on a second row instead of overwriting the first.
	type cellKey struct {
		day day
		row rowKey
	}
	sorted := append([]expand.Instant(nil), instants...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	daySet := make(map[day]struct{})
	rowSet := make(map[rowKey]struct{})
	zones := make(map[rowKey]string)
	cells := make(map[cellKey]*Cell, len(sorted))

	for _, in := range sorted {
		lt := in.Time.In(loc)
		d := day{lt.Year(), lt.Month(), lt.Day()}
		rk := rowKey{minute: lt.Hour()*60 + lt.Minute()}
		for cells[cellKey{d, rk}] != nil {
			rk.fold++
		}
		cell := &Cell{
			Token:  in.Token,
			Time:   lt,
			Label:  lt.Format(format.layout()),
			Minute: lt.Minute(),
		}
		if rk.fold > 0 {
			zone, _ := lt.Zone()
			zones[rk] = zone
			cell.Label += " " + zone
			if rk.fold == 1 {
				first := cells[cellKey{d, rowKey{minute: rk.minute}}]
				firstZone, _ := first.Time.Zone()
				zones[rowKey{minute: rk.minute}] = firstZone
				first.Label += " " + firstZone
			}
		}
		daySet[d] = struct{}{}
		rowSet[rk] = struct{}{}
		cells[cellKey{d, rk}] = cell
	}

	days := make([]day, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].ordinal() < days[j].ordinal() })

	rowKeys := make([]rowKey, 0, len(rowSet))
	for rk := range rowSet {
		rowKeys = append(rowKeys, rk)
	}
	sort.Slice(rowKeys, func(i, j int) bool {
		if rowKeys[i].minute != rowKeys[j].minute {
			return rowKeys[i].minute < rowKeys[j].minute
		}
		return rowKeys[i].fold < rowKeys[j].fold
	})

	gaps := make([]bool, len(days))
	anyGap := false
	for i := 1; i < len(days); i++ {
		if days[i].ordinal()-days[i-1].ordinal() > 1 {
			gaps[i] = true
			anyGap = true
		}
	}

	rows := make([]Row, 0, len(rowKeys)+1)
	if anyGap {
		rows = append(rows, Row{Spacer: true})
	}
	for _, rk := range rowKeys {
		ref := time.Date(2000, 1, 1, rk.minute/60, rk.minute%60, 0, 0, time.UTC)
		row := Row{
			Hour:   rk.minute / 60,
			Minute: rk.minute % 60,
			Fold:   rk.fold,
			Zone:   zones[rk],
			Label:  ref.Format(format.layout()),
		}
		if row.Zone != "" {
			row.Label += " " + row.Zone
		}
		rows = append(rows, row)
	}

	multiDay := len(days) > 1
	columns := make([]Column, len(days))
	for ci, d := range days {
		date := d.midnight(loc)
		col := Column{
			Date:         date,
			WeekdayLabel: locale.weekday(date),
			GapBefore:    gaps[ci],
			Cells:        make([]*Cell, len(rows)),
		}
		if multiDay {
			col.DateLabel = locale.date(date)
		}
		for ri, r := range rows {
			if r.Spacer {
				continue
			}
			col.Cells[ri] = cells[cellKey{d, r.key()}]
		}
		columns[ci] = col
	}

	return Table{Columns: columns, Rows: rows}, nil
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("grid: load timezone %q: %w", name, err)
	}
	return loc, nil
}
