package ics

import (
	"context"
	"sync"
	"time"

	"meetgrid/internal/config"
	"meetgrid/internal/expand"
	appLog "meetgrid/internal/log"
	"meetgrid/internal/model"
)

// Subscriptions holds the latest busy events of every configured calendar.
// Refresh runs from the serve loop's cron schedule; People is called per
// request. Both are safe for concurrent use.
type Subscriptions struct {
	fetcher   *Fetcher
	calendars []config.CalendarConfig

	mu     sync.RWMutex
	events map[string][]BusyEvent
}

func NewSubscriptions(fetcher *Fetcher, calendars []config.CalendarConfig) *Subscriptions {
	return &Subscriptions{
		fetcher:   fetcher,
		calendars: calendars,
		events:    make(map[string][]BusyEvent),
	}
}

// Refresh refetches every calendar. A calendar that fails keeps its previous
// events; the number of failures is returned.
func (s *Subscriptions) Refresh(ctx context.Context) int {
	failed := 0
	for _, c := range s.calendars {
		body, _, err := s.fetcher.Fetch(ctx, c.URL)
		if err != nil {
			failed++
			appLog.Error("calendar refresh failed", err, "name", c.Name, "url", redactURL(c.URL))
			continue
		}
		events, err := ParseBusy(c.Name, body)
		if err != nil {
			failed++
			appLog.Error("calendar parse failed", err, "name", c.Name)
			continue
		}
		s.Set(c.Name, events)
	}
	appLog.Info("calendar refresh finished", "calendars", len(s.calendars), "failed", failed)
	return failed
}

// Set replaces one calendar's events.
func (s *Subscriptions) Set(name string, events []BusyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[name] = events
}

// People turns every loaded calendar into a participant who is free at each
// instant their calendar leaves open. Calendars are returned in configured
// order; ones never loaded are left out.
func (s *Subscriptions) People(instants []expand.Instant, slotLength time.Duration) ([]model.Person, error) {
	from, to, ok := Span(instants, slotLength)
	if !ok {
		return []model.Person{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	people := make([]model.Person, 0, len(s.calendars))
	for _, c := range s.calendars {
		events, loaded := s.events[c.Name]
		if !loaded {
			continue
		}
		busy, err := ExpandBusy(events, from, to)
		if err != nil {
			return nil, err
		}
		people = append(people, model.Person{
			Name:         c.Name,
			Availability: FreeTokens(instants, busy, slotLength),
		})
	}
	return people, nil
}
