package model

// Person is one participant as supplied by the people store. Name is a
// display identity, not a stable id. Availability holds wire tokens in
// either shape; callers own the slice and the engine never writes to it.
type Person struct {
	Name         string   `json:"name" yaml:"name"`
	Availability []string `json:"availability" yaml:"availability"`
}

// Event is a proposed meeting as fetched from the event store: the
// candidate slot tokens plus the declared display timezone.
type Event struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string   `json:"name" yaml:"name"`
	Timezone string   `json:"timezone" yaml:"timezone"`
	Times    []string `json:"times" yaml:"times"`

	// People is optional; the CLI reads whole events with their participants
	// from a single file.
	People []Person `json:"people,omitempty" yaml:"people,omitempty"`
}

// Names returns the participants' display names in order.
func (e Event) Names() []string {
	out := make([]string, len(e.People))
	for i, p := range e.People {
		out[i] = p.Name
	}
	return out
}
