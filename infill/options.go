package infill

import (
	"fmt"

	"go-infill/curve"
)

// Options configures transition generation
type Options struct {
	// TransitionBars is the length of each gap in bars
	TransitionBars int `json:"transitionBars"`
	// Variance scales how far each fragment's own melody pulls away from
	// its average pitch
	Variance float64 `json:"variance"`
	// Smoothing is the spline smoothing parameter, 0 interpolates exactly
	Smoothing float64 `json:"smoothing"`
	// PitchMin and PitchMax bound generated pitches before snapping
	PitchMin int `json:"pitchMin"`
	PitchMax int `json:"pitchMax"`
	// Transpose moves every fragment to C major / A minor first
	Transpose bool `json:"transpose"`
	// TrustKeySignature uses a key signature marker instead of estimation
	TrustKeySignature bool `json:"trustKeySignature"`
}

// DefaultOptions returns the settings the command line starts from
func DefaultOptions() Options {
	return Options{
		TransitionBars: 4,
		Variance:       0.9,
		Smoothing:      curve.DefaultSmoothing,
		PitchMin:       10,
		PitchMax:       117,
		Transpose:      true,
	}
}

// Validate rejects settings generation cannot work with
func (o Options) Validate() error {
	if o.TransitionBars < 0 {
		return fmt.Errorf("transition length must be non-negative, got %d", o.TransitionBars)
	}
	if o.Smoothing < 0 {
		return fmt.Errorf("smoothing must be non-negative, got %g", o.Smoothing)
	}
	if o.PitchMin < 0 || o.PitchMax > 127 || o.PitchMin >= o.PitchMax {
		return fmt.Errorf("invalid pitch range [%d, %d]", o.PitchMin, o.PitchMax)
	}
	return nil
}
