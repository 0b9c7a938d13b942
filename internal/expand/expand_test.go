package expand

import (
	"errors"
	"testing"
	"time"

	"meetgrid/internal/slot"
)

// 2025-11-12 is a Wednesday.
var wednesday = time.Date(2025, 11, 12, 14, 20, 0, 0, time.UTC)

func TestExpand_Empty(t *testing.T) {
	res, err := Expand(nil, wednesday, DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if res.Instants == nil || len(res.Instants) != 0 {
		t.Fatalf("expected empty non-nil instants, got %#v", res.Instants)
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("expected no skipped tokens")
	}
}

func TestExpand_SpecificDates(t *testing.T) {
	res, err := Expand([]string{"1700-15112025", "0900-15112025"}, wednesday, DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Instants) != 2 {
		t.Fatalf("expected 2 instants, got %d", len(res.Instants))
	}
	want := []time.Time{
		time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 15, 17, 0, 0, 0, time.UTC),
	}
	for i, w := range want {
		if !res.Instants[i].Time.Equal(w) {
			t.Fatalf("instant %d: expected %s, got %s", i, w, res.Instants[i].Time)
		}
	}
	if got := res.Tokens(); got[0] != "0900-15112025" || got[1] != "1700-15112025" {
		t.Fatalf("unexpected tokens %v", got)
	}
}

func TestExpand_WeekdayFromWednesday(t *testing.T) {
	res, err := Expand([]string{"0900-1"}, wednesday, Options{WindowWeeks: 2})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{"0900-17112025", "0900-24112025", "0900-01122025"}
	if len(res.Instants) != len(want) {
		t.Fatalf("expected %d instants, got %d (%v)", len(want), len(res.Instants), res.Tokens())
	}
	for i, w := range want {
		if res.Instants[i].Token != w {
			t.Fatalf("instant %d: expected %s, got %s", i, w, res.Instants[i].Token)
		}
		if res.Instants[i].Time.Weekday() != time.Monday {
			t.Fatalf("instant %d is not a Monday: %s", i, res.Instants[i].Time)
		}
	}
}

func TestExpand_WeekdayTodayIncluded(t *testing.T) {
	// Wednesday 08:00 is earlier than "now" (14:20) but still today.
	res, err := Expand([]string{"0800-3"}, wednesday, Options{WindowWeeks: 0})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Instants) != 1 || res.Instants[0].Token != "0800-12112025" {
		t.Fatalf("expected today's occurrence, got %v", res.Tokens())
	}
}

func TestExpand_NegativeWindowClamped(t *testing.T) {
	res, err := Expand([]string{"0900-1"}, wednesday, Options{WindowWeeks: -3})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Instants) != 1 {
		t.Fatalf("expected a single occurrence, got %v", res.Tokens())
	}
}

func TestExpand_DedupInInstantSpace(t *testing.T) {
	tokens := []string{"0900-1", "0900-17112025", "0900-17112025", "0900-1"}
	res, err := Expand(tokens, wednesday, Options{WindowWeeks: 1})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{"0900-17112025", "0900-24112025"}
	if len(res.Instants) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Tokens())
	}
	for i, w := range want {
		if res.Instants[i].Token != w {
			t.Fatalf("instant %d: expected %s, got %s", i, w, res.Instants[i].Token)
		}
	}
}

func TestExpand_SortedAndUnique(t *testing.T) {
	tokens := []string{
		"2345-6", "0000-0", "1200-20112025", "0915-3", "1200-20112025",
		"0000-16112025", "1530-4", "0030-01012026",
	}
	res, err := Expand(tokens, wednesday, DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	seen := map[string]bool{}
	for i, in := range res.Instants {
		if seen[in.Token] {
			t.Fatalf("duplicate token %s", in.Token)
		}
		seen[in.Token] = true
		if i > 0 && !res.Instants[i-1].Time.Before(in.Time) {
			t.Fatalf("instants not strictly ascending at %d: %s >= %s", i, res.Instants[i-1].Time, in.Time)
		}
		if in.Time.Location() != time.UTC {
			t.Fatalf("instant %s is not UTC", in.Time)
		}
		s, err := slot.Decode(in.Token)
		if err != nil || s.Kind != slot.KindDate {
			t.Fatalf("canonical token %s is not a date token: %v", in.Token, err)
		}
	}
}

func TestExpand_StrictAbortsOnMalformed(t *testing.T) {
	_, err := Expand([]string{"0900-15112025", "25a0-15112025"}, wednesday, DefaultOptions())
	if !errors.Is(err, slot.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestExpand_LenientReportsSkipped(t *testing.T) {
	res, err := Expand([]string{"0900-15112025", "25a0-15112025"}, wednesday, Options{Mode: Lenient})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Instants) != 1 || res.Instants[0].Token != "0900-15112025" {
		t.Fatalf("expected the valid token to survive, got %v", res.Tokens())
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Token != "25a0-15112025" {
		t.Fatalf("expected skipped malformed token, got %+v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, slot.ErrMalformedToken) {
		t.Fatalf("expected skipped error to be ErrMalformedToken, got %v", res.Skipped[0].Err)
	}
}

func TestExpand_DeterministicForSameNow(t *testing.T) {
	tokens := []string{"1000-2", "0900-15112025", "1800-5"}
	a, err := Expand(tokens, wednesday, DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	b, err := Expand(tokens, wednesday, DefaultOptions())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(a.Instants) != len(b.Instants) {
		t.Fatalf("length mismatch %d vs %d", len(a.Instants), len(b.Instants))
	}
	for i := range a.Instants {
		if a.Instants[i] != b.Instants[i] {
			t.Fatalf("instant %d differs: %+v vs %+v", i, a.Instants[i], b.Instants[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != Strict {
		t.Fatalf("expected strict default, got %v %v", m, err)
	}
	if m, err := ParseMode("lenient"); err != nil || m != Lenient {
		t.Fatalf("expected lenient, got %v %v", m, err)
	}
	if _, err := ParseMode("loose"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
