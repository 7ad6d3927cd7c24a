package models

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window is well-formed: End strictly after Start.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two half-open windows intersect. Touching
// boundaries do not count as overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Intersection returns the overlapping part of two windows. Only meaningful
// when Overlaps is true.
func (w Window) Intersection(other Window) Window {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := w.End
	if other.End.Before(end) {
		end = other.End
	}
	return Window{Start: start, End: end}
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
