package slot

import (
	"errors"
	"fmt"
	"time"
)

// Wire shapes. Both are UTC and zero-padded; the length alone tells them apart.
const (
	DateTokenLen    = len("HHmm-DDMMYYYY")
	WeekdayTokenLen = len("HHmm-d")
)

// ErrMalformedToken is returned (wrapped in *MalformedTokenError) for any
// string that is not a valid slot token.
var ErrMalformedToken = errors.New("malformed slot token")

// MalformedTokenError carries the offending token and what was wrong with it.
type MalformedTokenError struct {
	Token  string
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed slot token %q: %s", e.Token, e.Reason)
}

func (e *MalformedTokenError) Unwrap() error { return ErrMalformedToken }

func malformed(token, format string, args ...any) error {
	return &MalformedTokenError{Token: token, Reason: fmt.Sprintf(format, args...)}
}

// Kind discriminates the two token variants.
type Kind int

const (
	KindDate Kind = iota + 1
	KindWeekday
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindWeekday:
		return "weekday"
	default:
		return "unknown"
	}
}

// Slot is the decoded form of a token. Day/Month/Year are set for KindDate,
// Weekday for KindWeekday. Weekday uses Go's convention: 0 is Sunday.
type Slot struct {
	Kind   Kind
	Hour   int
	Minute int

	Day   int
	Month time.Month
	Year  int

	Weekday time.Weekday
}

// FromTime builds a slot of the given kind from t in UTC. The minute is
// floored to the quarter hour.
func FromTime(t time.Time, kind Kind) Slot {
	t = t.UTC()
	s := Slot{
		Kind:   kind,
		Hour:   t.Hour(),
		Minute: t.Minute() - t.Minute()%15,
	}
	if kind == KindWeekday {
		s.Weekday = t.Weekday()
		return s
	}
	s.Day = t.Day()
	s.Month = t.Month()
	s.Year = t.Year()
	return s
}

// Encode renders t (converted to UTC) as a wire token. The timezone of t
// does not matter: tokens are always UTC and localized only for display.
func Encode(t time.Time, specificDate bool) (string, error) {
	kind := KindWeekday
	if specificDate {
		kind = KindDate
	}
	s := FromTime(t, kind)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s.Token(), nil
}

// Token serializes s without validating it; call Validate first when s was
// not produced by Decode or FromTime.
func (s Slot) Token() string {
	if s.Kind == KindWeekday {
		return fmt.Sprintf("%02d%02d-%d", s.Hour, s.Minute, int(s.Weekday))
	}
	return fmt.Sprintf("%02d%02d-%02d%02d%04d", s.Hour, s.Minute, s.Day, int(s.Month), s.Year)
}

func (s Slot) String() string { return s.Token() }

// Validate checks every component against the rules Decode enforces.
func (s Slot) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return malformed(s.Token(), "hour %d out of range", s.Hour)
	}
	if !validMinute(s.Minute) {
		return malformed(s.Token(), "minute %d is not a quarter hour", s.Minute)
	}
	switch s.Kind {
	case KindWeekday:
		if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
			return malformed(s.Token(), "weekday %d out of range", int(s.Weekday))
		}
	case KindDate:
		if s.Year < 0 || s.Year > 9999 {
			return malformed(s.Token(), "year %d does not fit four digits", s.Year)
		}
		if !validDate(s.Year, s.Month, s.Day) {
			return malformed(s.Token(), "invalid calendar date")
		}
	default:
		return malformed(s.Token(), "unknown kind %d", int(s.Kind))
	}
	return nil
}

// Time returns the concrete UTC instant of a date slot.
func (s Slot) Time() (time.Time, error) {
	if s.Kind != KindDate {
		return time.Time{}, fmt.Errorf("slot %s: %s slot has no fixed date", s.Token(), s.Kind)
	}
	return time.Date(s.Year, s.Month, s.Day, s.Hour, s.Minute, 0, 0, time.UTC), nil
}

// Clock returns minutes since midnight.
func (s Slot) Clock() int { return s.Hour*60 + s.Minute }

// Decode parses a wire token.
func Decode(token string) (Slot, error) {
	var s Slot
	switch len(token) {
	case DateTokenLen:
		s.Kind = KindDate
	case WeekdayTokenLen:
		s.Kind = KindWeekday
	default:
		return Slot{}, malformed(token, "length %d matches neither %d nor %d", len(token), DateTokenLen, WeekdayTokenLen)
	}
	if token[4] != '-' {
		return Slot{}, malformed(token, "missing '-' separator")
	}

	var ok bool
	if s.Hour, ok = digits(token[0:2]); !ok {
		return Slot{}, malformed(token, "hour is not numeric")
	}
	if s.Minute, ok = digits(token[2:4]); !ok {
		return Slot{}, malformed(token, "minute is not numeric")
	}

	if s.Kind == KindWeekday {
		wd, ok := digits(token[5:6])
		if !ok {
			return Slot{}, malformed(token, "weekday is not numeric")
		}
		s.Weekday = time.Weekday(wd)
	} else {
		var month int
		if s.Day, ok = digits(token[5:7]); !ok {
			return Slot{}, malformed(token, "day is not numeric")
		}
		if month, ok = digits(token[7:9]); !ok {
			return Slot{}, malformed(token, "month is not numeric")
		}
		s.Month = time.Month(month)
		if s.Year, ok = digits(token[9:13]); !ok {
			return Slot{}, malformed(token, "year is not numeric")
		}
	}

	if err := s.Validate(); err != nil {
		var me *MalformedTokenError
		if errors.As(err, &me) {
			return Slot{}, malformed(token, "%s", me.Reason)
		}
		return Slot{}, err
	}
	return s, nil
}

// KindOf reports the variant of token by its length alone, without
// validating the rest of it.
func KindOf(token string) (Kind, bool) {
	switch len(token) {
	case DateTokenLen:
		return KindDate, true
	case WeekdayTokenLen:
		return KindWeekday, true
	}
	return 0, false
}

// IsWeekday reports whether token has the weekday shape.
func IsWeekday(token string) bool {
	k, ok := KindOf(token)
	return ok && k == KindWeekday
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func validMinute(m int) bool {
	return m == 0 || m == 15 || m == 30 || m == 45
}

func validDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && t.Month() == month && t.Day() == day
}
