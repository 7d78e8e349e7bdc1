// Package features derives the scalar and melodic features of a fragment
// that the transition generator blends between.
package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"go-infill/debug"
	"go-infill/score"
)

// Point is one sample of a voice: the pitch sounding from Offset on
type Point struct {
	Offset float64 `json:"offset"`
	Pitch  float64 `json:"pitch"`
}

// Melody is a monophonic line extracted from a fragment
type Melody []Point

// Set holds everything the generator needs to know about one fragment
type Set struct {
	NotesPerBar int      `json:"notesPerBar"`
	Polyphony   int      `json:"polyphony"`
	Velocity    int      `json:"velocity"`
	AvgPitch    int      `json:"avgPitch"`
	AvgTempo    float64  `json:"avgTempo"`
	BarLength   float64  `json:"barLength"`
	TotalLength float64  `json:"totalLength"`
	Bars        int      `json:"bars"`
	Melodies    []Melody `json:"melodies"`
}

// Round is round-half-to-even, used for every rounded feature
func Round(x float64) int {
	return int(math.RoundToEven(x))
}

// Extract computes the feature set of a flat fragment
func Extract(f *score.Fragment) (*Set, error) {
	barLength, err := f.BarLength()
	if err != nil {
		return nil, err
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("%s: %w", f.Name, score.ErrEmptyFragment)
	}

	total := f.Duration()

	// Floor division: a trailing partial bar is not counted. Anything
	// shorter than one bar still counts as one.
	bars := max(1, int(math.Floor(total/barLength+1e-9)))

	voices := make([]float64, len(f.Events))
	velocities := make([]float64, len(f.Events))
	var pitches []float64
	for i, e := range f.Events {
		voices[i] = float64(e.Voices())
		velocities[i] = float64(e.Velocity())
		for _, n := range e.Notes {
			pitches = append(pitches, float64(n.Pitch))
		}
	}
	if len(pitches) == 0 {
		return nil, fmt.Errorf("%s: %w", f.Name, score.ErrEmptyFragment)
	}

	s := &Set{
		NotesPerBar: Round(float64(len(f.Events)) / float64(bars)),
		Polyphony:   Round(stat.Mean(voices, nil)),
		Velocity:    Round(stat.Mean(velocities, nil)),
		AvgPitch:    Round(stat.Mean(pitches, nil)),
		AvgTempo:    f.Tempo(),
		BarLength:   barLength,
		TotalLength: total,
		Bars:        bars,
	}

	s.Melodies = make([]Melody, max(1, s.Polyphony))
	for k := range s.Melodies {
		s.Melodies[k] = ExtractMelody(f.Events, k)
	}

	debug.Log("features", "%s: %d bars npb=%d poly=%d vel=%d pitch=%d tempo=%.1f",
		f.Name, bars, s.NotesPerBar, s.Polyphony, s.Velocity, s.AvgPitch, s.AvgTempo)
	return s, nil
}

// ExtractMelody takes the k-th lowest pitch of every event (or the highest
// one when a chord is thinner than k+1), closed by a point repeating the
// last pitch where the last event ends
func ExtractMelody(events []score.Event, k int) Melody {
	if len(events) == 0 {
		return nil
	}
	m := make(Melody, 0, len(events)+1)
	for _, e := range events {
		m = append(m, Point{Offset: e.Offset, Pitch: float64(e.Pitch(k))})
	}
	last := events[len(events)-1]
	m = append(m, Point{Offset: last.End(), Pitch: float64(last.Pitch(k))})
	return m
}

// Melody returns voice k, reusing the highest extracted voice when the
// fragment has fewer voices (unison doubling)
func (s *Set) Melody(k int) Melody {
	if len(s.Melodies) == 0 {
		return nil
	}
	return s.Melodies[max(0, min(k, len(s.Melodies)-1))]
}

// Shift returns a copy of the melody moved by delta quarter notes
func (m Melody) Shift(delta float64) Melody {
	out := make(Melody, len(m))
	for i, p := range m {
		out[i] = Point{Offset: p.Offset + delta, Pitch: p.Pitch}
	}
	return out
}
