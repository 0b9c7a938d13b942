package grid

import (
	"errors"
	"testing"
	"time"

	"meetgrid/internal/expand"
)

var now = time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)

func mustExpand(t *testing.T, tokens ...string) []expand.Instant {
	t.Helper()
	res, err := expand.Expand(tokens, now, expand.DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	return res.Instants
}

func nonNil(cells []*Cell) int {
	n := 0
	for _, c := range cells {
		if c != nil {
			n++
		}
	}
	return n
}

func TestBuild_Empty(t *testing.T) {
	tbl, err := Build(nil, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !tbl.Empty() || len(tbl.Columns) != 0 || len(tbl.Rows) != 0 {
		t.Fatalf("expected empty table, got %+v", tbl)
	}
	if tbl.Columns == nil || tbl.Rows == nil {
		t.Fatalf("expected non-nil empty slices")
	}
}

func TestBuild_SingleDayTwoRows(t *testing.T) {
	instants := mustExpand(t, "0900-15112025", "1700-15112025")
	tbl, err := Build(instants, Options{Locale: "en-US", TimeFormat: Format12h, Location: time.UTC})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tbl.Columns) != 1 {
		t.Fatalf("expected 1 column, got %d", len(tbl.Columns))
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	col := tbl.Columns[0]
	if col.WeekdayLabel != "Sat" {
		t.Fatalf("expected Sat, got %q", col.WeekdayLabel)
	}
	if col.DateLabel != "" {
		t.Fatalf("single-day grid should not carry a date label, got %q", col.DateLabel)
	}
	for ri := range tbl.Rows {
		if tbl.Rows[ri].Spacer {
			t.Fatalf("unexpected spacer row %d", ri)
		}
		if col.Cells[ri] == nil {
			t.Fatalf("row %d: expected a cell", ri)
		}
	}
	if tbl.Rows[0].Label != "9:00 AM" || tbl.Rows[1].Label != "5:00 PM" {
		t.Fatalf("unexpected row labels %q %q", tbl.Rows[0].Label, tbl.Rows[1].Label)
	}
	if col.Cells[0].Token != "0900-15112025" || col.Cells[1].Token != "1700-15112025" {
		t.Fatalf("unexpected cell tokens %s %s", col.Cells[0].Token, col.Cells[1].Token)
	}
}

func TestBuild_SharedRowAxisWithNulls(t *testing.T) {
	// Mon 17 Nov 09:00-10:00, Tue 18 Nov 13:00 only.
	instants := mustExpand(t,
		"0900-17112025", "0915-17112025", "0930-17112025", "0945-17112025",
		"1300-18112025",
	)
	tbl, err := Build(instants, Options{TimeFormat: Format24h})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tbl.Columns) != 2 || len(tbl.Rows) != 5 {
		t.Fatalf("expected 2x5 grid, got %d columns %d rows", len(tbl.Columns), len(tbl.Rows))
	}
	if tbl.Columns[1].GapBefore {
		t.Fatalf("adjacent days must not be flagged as a gap")
	}
	if got := nonNil(tbl.Columns[0].Cells); got != 4 {
		t.Fatalf("expected 4 cells on Monday, got %d", got)
	}
	if got := nonNil(tbl.Columns[1].Cells); got != 1 {
		t.Fatalf("expected 1 cell on Tuesday, got %d", got)
	}
	if tbl.Columns[1].Cells[4] == nil || tbl.Columns[1].Cells[4].Label != "13:00" {
		t.Fatalf("expected 13:00 cell in last row")
	}
	if tbl.Columns[0].Cells[4] != nil {
		t.Fatalf("Monday must be null at 13:00")
	}
	if tbl.Columns[0].DateLabel != "Nov 17" || tbl.Columns[1].DateLabel != "Nov 18" {
		t.Fatalf("unexpected date labels %q %q", tbl.Columns[0].DateLabel, tbl.Columns[1].DateLabel)
	}
	minutes := []int{0, 15, 30, 45}
	for i, m := range minutes {
		if tbl.Columns[0].Cells[i].Minute != m {
			t.Fatalf("row %d: expected minute %d, got %d", i, m, tbl.Columns[0].Cells[i].Minute)
		}
	}
}

func TestBuild_DayGapSpacer(t *testing.T) {
	// Monday and Thursday only.
	instants := mustExpand(t, "0900-20112025", "0900-17112025", "1000-17112025")
	tbl, err := Build(instants, Options{TimeFormat: Format24h})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tbl.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(tbl.Columns))
	}
	if tbl.Columns[0].Date.Day() != 17 || tbl.Columns[1].Date.Day() != 20 {
		t.Fatalf("columns not chronological: %s %s", tbl.Columns[0].Date, tbl.Columns[1].Date)
	}
	if tbl.Columns[0].GapBefore || !tbl.Columns[1].GapBefore {
		t.Fatalf("expected gap flag only on Thursday")
	}
	if len(tbl.Rows) != 3 || !tbl.Rows[0].Spacer {
		t.Fatalf("expected leading spacer plus 2 rows, got %+v", tbl.Rows)
	}
	if tbl.Rows[0].Label != "" {
		t.Fatalf("spacer row must not carry a label")
	}
	for _, col := range tbl.Columns {
		if len(col.Cells) != len(tbl.Rows) {
			t.Fatalf("cells not aligned with rows")
		}
		if col.Cells[0] != nil {
			t.Fatalf("spacer row must be null in every column")
		}
	}
	if tbl.Rows[1].Spacer || tbl.Rows[1].Hour != 9 || tbl.Rows[2].Hour != 10 {
		t.Fatalf("unexpected rows %+v", tbl.Rows)
	}
}

func TestBuild_TimezoneShiftsDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC on 16 Nov is 21:00 on 15 Nov in New York.
	instants := mustExpand(t, "0200-16112025", "1400-16112025")
	tbl, err := Build(instants, Options{TimeFormat: Format24h, Location: ny})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tbl.Columns) != 2 {
		t.Fatalf("expected 2 local days, got %d", len(tbl.Columns))
	}
	if tbl.Columns[0].Date.Day() != 15 || tbl.Columns[1].Date.Day() != 16 {
		t.Fatalf("unexpected local dates %s %s", tbl.Columns[0].Date, tbl.Columns[1].Date)
	}
	if tbl.Rows[0].Label != "09:00" || tbl.Rows[1].Label != "21:00" {
		t.Fatalf("unexpected local row labels %q %q", tbl.Rows[0].Label, tbl.Rows[1].Label)
	}
	if tbl.Columns[0].Cells[1] == nil || tbl.Columns[0].Cells[1].Token != "0200-16112025" {
		t.Fatalf("expected the UTC token to survive localization")
	}
}

func TestBuild_FallBackKeepsRepeatedWallTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 05:30 and 06:30 UTC on 2 Nov 2025 are both 01:30 in New York, once in
	// EDT and once in EST.
	instants := mustExpand(t, "0530-02112025", "0630-02112025", "1400-02112025")
	tbl, err := Build(instants, Options{TimeFormat: Format12h, Location: ny})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tbl.Columns) != 1 {
		t.Fatalf("expected 1 column, got %d", len(tbl.Columns))
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %+v", tbl.Rows)
	}
	wantRows := []struct {
		label string
		fold  int
	}{{"1:30 AM EDT", 0}, {"1:30 AM EST", 1}, {"9:00 AM", 0}}
	for i, w := range wantRows {
		if tbl.Rows[i].Label != w.label || tbl.Rows[i].Fold != w.fold {
			t.Fatalf("row %d: got %+v, want label %q fold %d", i, tbl.Rows[i], w.label, w.fold)
		}
	}
	cells := tbl.Columns[0].Cells
	wantTokens := []string{"0530-02112025", "0630-02112025", "1400-02112025"}
	for i, tok := range wantTokens {
		if cells[i] == nil || cells[i].Token != tok {
			t.Fatalf("cell %d: got %+v, want token %s", i, cells[i], tok)
		}
	}
	if cells[0].Label != "1:30 AM EDT" || cells[1].Label != "1:30 AM EST" {
		t.Fatalf("unexpected cell labels %q %q", cells[0].Label, cells[1].Label)
	}
}

func TestBuild_EveryInstantInOneCellAcrossDST(t *testing.T) {
	ranges := []struct{ from, to time.Time }{
		{time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 29, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 4, 5, 6, 0, 0, 0, time.UTC), time.Date(2025, 4, 6, 6, 0, 0, 0, time.UTC)},
		{time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC), time.Date(2025, 10, 27, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)},
	}
	var tokens []string
	for _, r := range ranges {
		for ts := r.from; ts.Before(r.to); ts = ts.Add(45 * time.Minute) {
			tokens = append(tokens, ts.Format("1504-02012006"))
		}
	}
	instants := mustExpand(t, tokens...)

	for _, zone := range []string{"America/New_York", "Europe/Berlin", "Australia/Sydney"} {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		tbl, err := Build(instants, Options{TimeFormat: Format24h, Location: loc})
		if err != nil {
			t.Fatalf("%s: build: %v", zone, err)
		}
		seen := make(map[string]int, len(instants))
		for _, col := range tbl.Columns {
			for _, c := range col.Cells {
				if c != nil {
					seen[c.Token]++
				}
			}
		}
		if len(seen) != len(instants) {
			t.Fatalf("%s: %d distinct cell tokens for %d instants", zone, len(seen), len(instants))
		}
		for _, in := range instants {
			if seen[in.Token] != 1 {
				t.Fatalf("%s: token %s appears in %d cells", zone, in.Token, seen[in.Token])
			}
		}
	}
}

func TestBuild_LocalizedLabels(t *testing.T) {
	instants := mustExpand(t, "0900-17112025", "0900-18112025")
	tbl, err := Build(instants, Options{Locale: "de_DE", TimeFormat: Format24h})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tbl.Columns[0].WeekdayLabel != "Mo" {
		t.Fatalf("expected German weekday, got %q", tbl.Columns[0].WeekdayLabel)
	}
	if tbl.Columns[0].DateLabel != "17. Nov" {
		t.Fatalf("expected German date label, got %q", tbl.Columns[0].DateLabel)
	}
}

func TestBuild_InvalidTimeFormat(t *testing.T) {
	_, err := Build(nil, Options{TimeFormat: "13h"})
	if !errors.Is(err, ErrInvalidTimeFormat) {
		t.Fatalf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestResolveLocale(t *testing.T) {
	cases := map[string]string{
		"":       "en-US",
		"en":     "en-US",
		"de-AT":  "de-DE",
		"pt_BR":  "pt-BR",
		"ja":     "ja-JP",
		"!!bad!": "en-US",
	}
	for in, want := range cases {
		if got := ResolveLocale(in); got != want {
			t.Fatalf("ResolveLocale(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC for empty name, got %v %v", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
