package expand

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"meetgrid/internal/slot"
)

// DefaultWindowWeeks is how many extra weekly occurrences a weekday token
// gets beyond its first one.
const DefaultWindowWeeks = 2

// Mode decides what happens to malformed tokens.
type Mode int

const (
	// Strict aborts the whole expansion on the first malformed token.
	Strict Mode = iota
	// Lenient skips malformed tokens and reports them in Result.Skipped.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseMode accepts "strict", "lenient" or "" (strict).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("expand: unknown mode %q", s)
}

// Options controls expansion.
type Options struct {
	// WindowWeeks is the number of weekly repeats projected after the first
	// occurrence of a weekday token. Negative values are treated as zero.
	WindowWeeks int
	Mode        Mode
}

// DefaultOptions returns strict expansion over DefaultWindowWeeks.
func DefaultOptions() Options {
	return Options{WindowWeeks: DefaultWindowWeeks, Mode: Strict}
}

// Normalize clamps out-of-range values.
func (o *Options) Normalize() {
	if o.WindowWeeks < 0 {
		o.WindowWeeks = 0
	}
	if o.Mode != Lenient {
		o.Mode = Strict
	}
}

// Instant is one concrete candidate time. Token is always the specific-date
// form, whatever the originating token looked like.
type Instant struct {
	Time  time.Time `json:"time"`
	Token string    `json:"token"`
}

// SkippedToken records a token dropped in Lenient mode.
type SkippedToken struct {
	Token string
	Err   error
}

// Result of an expansion. Instants are unique and strictly ascending.
type Result struct {
	Instants []Instant
	Skipped  []SkippedToken
}

// Tokens returns the canonical token of every instant, in order.
func (r Result) Tokens() []string {
	out := make([]string, len(r.Instants))
	for i, in := range r.Instants {
		out[i] = in.Token
	}
	return out
}

// Expand turns tokens into concrete instants relative to now. Weekday tokens
// start at the first matching UTC date on or after now's UTC date (today
// included) and repeat weekly WindowWeeks more times.
func Expand(tokens []string, now time.Time, opts Options) (Result, error) {
	opts.Normalize()

	var result Result
	if len(tokens) == 0 {
		result.Instants = []Instant{}
		return result, nil
	}

	today := startOfDay(now.UTC())
	seen := make(map[int64]struct{}, len(tokens))
	instants := make([]Instant, 0, len(tokens))

	add := func(t time.Time) {
		key := t.Unix()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		instants = append(instants, Instant{Time: t, Token: dateToken(t)})
	}

	for _, tok := range tokens {
		s, err := slot.Decode(tok)
		if err != nil {
			if opts.Mode == Strict {
				return Result{}, err
			}
			result.Skipped = append(result.Skipped, SkippedToken{Token: tok, Err: err})
			continue
		}

		if s.Kind == slot.KindDate {
			t, err := s.Time()
			if err != nil {
				return Result{}, err
			}
			add(t)
			continue
		}

		occ, err := weekly(s, today, opts.WindowWeeks+1)
		if err != nil {
			return Result{}, fmt.Errorf("expand %s: %w", tok, err)
		}
		for _, t := range occ {
			add(t)
		}
	}

	sort.Slice(instants, func(i, j int) bool {
		return instants[i].Time.Before(instants[j].Time)
	})
	result.Instants = instants
	return result, nil
}

// weekly projects a weekday slot with an RRULE anchored at today's date.
func weekly(s slot.Slot, today time.Time, count int) ([]time.Time, error) {
	dtstart := today.Add(time.Duration(s.Clock()) * time.Minute)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Count:     count,
		Byweekday: []rrule.Weekday{rruleWeekday(s.Weekday)},
	})
	if err != nil {
		return nil, err
	}
	occ := r.All()
	for i := range occ {
		occ[i] = occ[i].UTC()
	}
	return occ, nil
}

func rruleWeekday(wd time.Weekday) rrule.Weekday {
	switch wd {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateToken(t time.Time) string {
	// t always comes from a decoded slot, so it is quarter aligned and in range.
	return slot.FromTime(t, slot.KindDate).Token()
}
