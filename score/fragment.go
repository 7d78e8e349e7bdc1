package score

import (
	"fmt"
	"math"
	"sort"
)

// DefaultTempo is used when a fragment carries no tempo marking
const DefaultTempo = 120.0

// Meter is a time signature marker
type Meter struct {
	Offset      float64 `json:"offset"`
	Numerator   uint8   `json:"numerator"`
	Denominator uint8   `json:"denominator"`
}

// BarLength returns the bar length in quarter notes (4/4 -> 4, 6/8 -> 3)
func (m Meter) BarLength() float64 {
	if m.Denominator == 0 {
		return 0
	}
	return float64(m.Numerator) * 4 / float64(m.Denominator)
}

func (m Meter) String() string {
	return fmt.Sprintf("%d/%d", m.Numerator, m.Denominator)
}

// MeterForBarLength picks a quarter-note meter for a bar length, falling
// back to eighths for fractional lengths (1.5 -> 3/8)
func MeterForBarLength(barLength float64) Meter {
	if q := math.Round(barLength); math.Abs(q-barLength) < onsetTolerance && q >= 1 {
		return Meter{Numerator: uint8(q), Denominator: 4}
	}
	return Meter{Numerator: uint8(math.Round(barLength * 2)), Denominator: 8}
}

// TempoMark sets the tempo from Offset on
type TempoMark struct {
	Offset float64 `json:"offset"`
	BPM    float64 `json:"bpm"`
}

// KeyMark is a key signature marker
type KeyMark struct {
	Offset float64 `json:"offset"`
	Key    Key     `json:"key"`
}

// Fragment is a flat, time ordered excerpt of music
type Fragment struct {
	Name   string      `json:"name,omitempty"`
	Events []Event     `json:"events"`
	Meters []Meter     `json:"meters,omitempty"`
	Tempos []TempoMark `json:"tempos,omitempty"`
	Keys   []KeyMark   `json:"keys,omitempty"`
}

// NewFragment builds a fragment in the given meter from loose notes
func NewFragment(name string, meter Meter, notes ...Note) *Fragment {
	return &Fragment{
		Name:   name,
		Events: Group(notes),
		Meters: []Meter{meter},
	}
}

// Duration returns the highest end time of any note
func (f *Fragment) Duration() float64 {
	d := 0.0
	for _, e := range f.Events {
		d = max(d, e.End())
	}
	return d
}

// NoteCount returns the number of individual notes
func (f *Fragment) NoteCount() int {
	n := 0
	for _, e := range f.Events {
		n += len(e.Notes)
	}
	return n
}

// BarLength returns the single bar length in effect for the fragment.
// A fragment without any meter is in 4/4.
func (f *Fragment) BarLength() (float64, error) {
	if len(f.Meters) == 0 {
		return 4, nil
	}
	bl := f.Meters[0].BarLength()
	for _, m := range f.Meters[1:] {
		if math.Abs(m.BarLength()-bl) > onsetTolerance {
			return 0, fmt.Errorf("%s: %v then %v: %w", f.Name, f.Meters[0], m, ErrInconsistentTimeSignature)
		}
	}
	if bl <= 0 {
		return 0, fmt.Errorf("%s: meter %v: %w", f.Name, f.Meters[0], ErrInconsistentTimeSignature)
	}
	return bl, nil
}

// Tempo returns the last tempo marking, or DefaultTempo
func (f *Fragment) Tempo() float64 {
	if len(f.Tempos) == 0 {
		return DefaultTempo
	}
	return f.Tempos[len(f.Tempos)-1].BPM
}

// HasTempoAt reports whether a tempo marking sits at offset
func (f *Fragment) HasTempoAt(offset float64) bool {
	for _, t := range f.Tempos {
		if math.Abs(t.Offset-offset) < onsetTolerance {
			return true
		}
	}
	return false
}

// Sort orders events and markers by offset
func (f *Fragment) Sort() {
	sort.SliceStable(f.Events, func(i, j int) bool { return f.Events[i].Offset < f.Events[j].Offset })
	sort.SliceStable(f.Meters, func(i, j int) bool { return f.Meters[i].Offset < f.Meters[j].Offset })
	sort.SliceStable(f.Tempos, func(i, j int) bool { return f.Tempos[i].Offset < f.Tempos[j].Offset })
	sort.SliceStable(f.Keys, func(i, j int) bool { return f.Keys[i].Offset < f.Keys[j].Offset })
}

// Clone returns a deep copy
func (f *Fragment) Clone() *Fragment {
	out := &Fragment{
		Name:   f.Name,
		Events: make([]Event, len(f.Events)),
		Meters: append([]Meter(nil), f.Meters...),
		Tempos: append([]TempoMark(nil), f.Tempos...),
		Keys:   append([]KeyMark(nil), f.Keys...),
	}
	for i, e := range f.Events {
		out.Events[i] = e.Shift(0)
	}
	return out
}

// Transpose moves every pitch by the given number of semitones, clamped to
// the MIDI range
func (f *Fragment) Transpose(semitones int) {
	for i := range f.Events {
		for j := range f.Events[i].Notes {
			p := int(f.Events[i].Notes[j].Pitch) + semitones
			f.Events[i].Notes[j].Pitch = uint8(max(0, min(127, p)))
		}
	}
}

// StripKeys removes all key signature markers
func (f *Fragment) StripKeys() {
	f.Keys = nil
}
