package score

import "sort"

// Note is a single pitched note. Times are in quarter notes.
type Note struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Pitch    uint8   `json:"pitch"`
	Velocity uint8   `json:"velocity"`
}

// End returns the offset where the note stops sounding
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// Event is everything that starts at one offset: a single note or a chord.
// Notes are kept sorted from lowest to highest pitch.
type Event struct {
	Offset float64 `json:"offset"`
	Notes  []Note  `json:"notes"`
}

// NewEvent groups notes into one event at the first note's start
func NewEvent(notes ...Note) Event {
	ns := make([]Note, len(notes))
	copy(ns, notes)
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].Pitch < ns[j].Pitch
	})
	e := Event{Notes: ns}
	if len(ns) > 0 {
		e.Offset = ns[0].Start
		for i := range e.Notes {
			e.Notes[i].Start = e.Offset
		}
	}
	return e
}

// Chord builds an event of several pitches sharing offset, duration and velocity
func Chord(offset, duration float64, velocity uint8, pitches ...uint8) Event {
	notes := make([]Note, len(pitches))
	for i, p := range pitches {
		notes[i] = Note{Start: offset, Duration: duration, Pitch: p, Velocity: velocity}
	}
	return NewEvent(notes...)
}

func (e Event) IsChord() bool {
	return len(e.Notes) > 1
}

// Voices returns how many notes sound together in this event
func (e Event) Voices() int {
	return len(e.Notes)
}

// Duration returns the longest note duration in the event
func (e Event) Duration() float64 {
	d := 0.0
	for _, n := range e.Notes {
		d = max(d, n.Duration)
	}
	return d
}

func (e Event) End() float64 {
	return e.Offset + e.Duration()
}

// Velocity of a chord is that of its loudest note
func (e Event) Velocity() uint8 {
	var v uint8
	for _, n := range e.Notes {
		v = max(v, n.Velocity)
	}
	return v
}

// Pitch returns the k-th lowest pitch, clamped to the highest available
func (e Event) Pitch(k int) uint8 {
	if len(e.Notes) == 0 {
		return 0
	}
	k = max(0, min(k, len(e.Notes)-1))
	return e.Notes[k].Pitch
}

// Shift returns a copy of the event moved by delta quarter notes
func (e Event) Shift(delta float64) Event {
	out := Event{Offset: e.Offset + delta, Notes: make([]Note, len(e.Notes))}
	for i, n := range e.Notes {
		n.Start += delta
		out.Notes[i] = n
	}
	return out
}

// onsetTolerance is how close two starts must be to count as simultaneous
const onsetTolerance = 1e-9

// Group collects notes that start together into events, ordered by offset
func Group(notes []Note) []Event {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var events []Event
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Start-sorted[i].Start < onsetTolerance {
			j++
		}
		events = append(events, NewEvent(sorted[i:j]...))
		i = j
	}
	return events
}
