package model

// LogRecord represents a single log entry used across the system.
// It is the canonical type for decoding, storage, and display.
//
// Timestamp is kept as the wire string: Lumberjack emits ISO-8601 timestamps
// whose lexicographic order equals chronological order, so the store sorts
// and the UI displays the raw value without a parse round-trip.
type LogRecord struct {
	UID       string            `json:"uid"`
	Branch    string            `json:"branch"`
	Category  string            `json:"category"`
	Env       string            `json:"env"`
	File      string            `json:"file"`
	Function  string            `json:"function"`
	Level     string            `json:"level"`
	Line      int               `json:"line"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Custom    map[string]string `json:"custom,omitempty"`
}

// FacetValue is one toggleable entry of a facet filter.
type FacetValue struct {
	Name string `json:"name"`
	Show bool   `json:"show"`
}

// Facet is an ordered sequence of facet values for one filter dimension
// (level, category or environment). Order is order of first appearance.
type Facet []FacetValue

// Shown returns the names currently visible, in facet order.
func (f Facet) Shown() []string {
	shown := make([]string, 0, len(f))
	for _, v := range f {
		if v.Show {
			shown = append(shown, v.Name)
		}
	}
	return shown
}

// AllShown reports whether every value of the facet is visible.
func (f Facet) AllShown() bool {
	for _, v := range f {
		if !v.Show {
			return false
		}
	}
	return true
}

// Toggle flips the visibility of the named value. It reports whether the
// value was found.
func (f Facet) Toggle(name string) bool {
	for i := range f {
		if f[i].Name == name {
			f[i].Show = !f[i].Show
			return true
		}
	}
	return false
}

// Clone returns a copy the caller may mutate independently.
func (f Facet) Clone() Facet {
	if f == nil {
		return nil
	}
	out := make(Facet, len(f))
	copy(out, f)
	return out
}
