package infill

import (
	"fmt"

	"go-infill/features"
)

// Feature names a scalar of a feature set that is blended bar by bar
type Feature int

const (
	NotesPerBar Feature = iota
	Polyphony
	Velocity
	Tempo
	Pitch
)

var featureNames = map[Feature]string{
	NotesPerBar: "notes_per_bar",
	Polyphony:   "polyphony",
	Velocity:    "velocity",
	Tempo:       "avg_tempo",
	Pitch:       "avg_pitch",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// Value reads the feature from a set
func (f Feature) Value(s *features.Set) float64 {
	switch f {
	case NotesPerBar:
		return float64(s.NotesPerBar)
	case Polyphony:
		return float64(s.Polyphony)
	case Velocity:
		return float64(s.Velocity)
	case Tempo:
		return s.AvgTempo
	case Pitch:
		return float64(s.AvgPitch)
	}
	return 0
}

// Blend mixes current into next: weight 0 gives current, 1 gives next
func Blend(current, next, weight float64) float64 {
	return weight*next + (1-weight)*current
}

// BlendFeature blends one feature of two sets and rounds the result
func BlendFeature(f Feature, current, next *features.Set, weight float64) int {
	return features.Round(Blend(f.Value(current), f.Value(next), weight))
}

// RelativePosition is the blend weight of a gap bar, numbered from 1. It
// never reaches 1 inside the gap.
func RelativePosition(bar, bars int) float64 {
	return float64(bar) / float64(bars+1)
}
