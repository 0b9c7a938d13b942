package availability

import (
	"fmt"
	"time"

	"meetgrid/internal/expand"
	"meetgrid/internal/model"
)

// Slot is the aggregate for one instant. People keeps the input order.
type Slot struct {
	Token  string    `json:"token"`
	Time   time.Time `json:"time"`
	People []string  `json:"people"`
}

// Count is the number of people free at the slot.
func (s Slot) Count() int { return len(s.People) }

// Result holds one Slot per instant plus the count range across all of them.
// Min and Max are reported as-is; Min == Max means there is no variance to
// normalize against.
type Result struct {
	Slots []Slot `json:"slots"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// Aggregate counts, for every instant, which people marked it available.
// People's tokens are expanded with the same now and opts as the event's,
// so a weekday mark and the dated instant it expands to are the same slot.
func Aggregate(instants []expand.Instant, people []model.Person, now time.Time, opts expand.Options) (Result, error) {
	res := Result{Slots: make([]Slot, len(instants))}
	if len(instants) == 0 {
		return res, nil
	}

	marks := make([]map[string]struct{}, len(people))
	for i, p := range people {
		x, err := expand.Expand(p.Availability, now, opts)
		if err != nil {
			return Result{}, fmt.Errorf("availability of %q: %w", p.Name, err)
		}
		set := make(map[string]struct{}, len(x.Instants))
		for _, in := range x.Instants {
			set[in.Token] = struct{}{}
		}
		marks[i] = set
	}

	for i, in := range instants {
		names := make([]string, 0, len(people))
		for pi, p := range people {
			if _, ok := marks[pi][in.Token]; ok {
				names = append(names, p.Name)
			}
		}
		res.Slots[i] = Slot{Token: in.Token, Time: in.Time, People: names}

		n := len(names)
		if i == 0 || n < res.Min {
			res.Min = n
		}
		if n > res.Max {
			res.Max = n
		}
	}
	return res, nil
}

// Lookup indexes the slots by token for zipping with a grid.
func (r Result) Lookup() map[string]*Slot {
	out := make(map[string]*Slot, len(r.Slots))
	for i := range r.Slots {
		out[r.Slots[i].Token] = &r.Slots[i]
	}
	return out
}

// Intensity scales count into [0, 1] between Min and Max. It is 0 for every
// count when Min == Max.
func (r Result) Intensity(count int) float64 {
	if r.Max == r.Min {
		return 0
	}
	v := float64(count-r.Min) / float64(r.Max-r.Min)
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
