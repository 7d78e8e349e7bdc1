package infill

import (
	"fmt"
	"math"

	"go-infill/curve"
	"go-infill/debug"
	"go-infill/features"
	"go-infill/score"
)

// Pair is one current/next fragment pair ready for generation. Its times
// are pair-local: 0 is where the current fragment starts.
type Pair struct {
	Current *features.Set
	Next    *features.Set
	Curves  []*curve.Curve
	opts    Options
}

// Transition holds the notes and tempo changes generated for one gap, in
// absolute output time
type Transition struct {
	Events   []score.Event
	Tempos   []score.TempoMark
	Start    float64
	GapStart float64
}

// NewPair checks that both fragments share a bar length and fits one curve
// per voice
func NewPair(current, next *features.Set, opts Options) (*Pair, error) {
	if math.Abs(current.BarLength-next.BarLength) > 1e-9 {
		return nil, fmt.Errorf("bar length %g vs %g: %w", current.BarLength, next.BarLength, score.ErrBarLengthMismatch)
	}
	p := &Pair{Current: current, Next: next, opts: opts}
	if opts.TransitionBars == 0 {
		return p, nil
	}

	// Every voice of a fragment is sampled at the same event offsets, so the
	// voices fit or fail together. A voice missing from one fragment doubles
	// its highest voice.
	voices := max(len(current.Melodies), len(next.Melodies))
	for k := 0; k < voices; k++ {
		c, err := curve.FitPair(current.Melody(k), next.Melody(k), p.GapStart(), opts.Smoothing)
		if err != nil {
			return nil, fmt.Errorf("voice %d: %w", k, err)
		}
		debug.Log("curve", "voice %d: %d knots", k, c.Knots())
		p.Curves = append(p.Curves, c)
	}
	return p, nil
}

// GapStart is where the next fragment begins, relative to the current one
func (p *Pair) GapStart() float64 {
	return p.Current.TotalLength + float64(p.opts.TransitionBars)*p.Current.BarLength
}

// curve returns the curve for voice i; missing voices double the highest one
func (p *Pair) curve(i int) *curve.Curve {
	return p.Curves[max(0, min(i, len(p.Curves)-1))]
}

// Generate synthesizes the gap bar by bar. origin is the absolute output
// time at which the current fragment starts.
func (p *Pair) Generate(origin float64) Transition {
	cur, next := p.Current, p.Next
	bars := p.opts.TransitionBars
	t := Transition{
		Start:    origin + cur.TotalLength,
		GapStart: origin + p.GapStart(),
	}

	for bar := 1; bar <= bars; bar++ {
		w := RelativePosition(bar, bars)
		notesPerBar := max(1, BlendFeature(NotesPerBar, cur, next, w))
		polyphony := max(1, BlendFeature(Polyphony, cur, next, w))
		velocity := uint8(max(1, min(127, BlendFeature(Velocity, cur, next, w))))
		tempo := BlendFeature(Tempo, cur, next, w)

		barStart := cur.TotalLength + float64(bar-1)*cur.BarLength
		t.Tempos = append(t.Tempos, score.TempoMark{Offset: origin + barStart, BPM: float64(tempo)})

		duration := cur.BarLength / float64(notesPerBar)
		debug.Log("infill", "bar %d/%d w=%.3f npb=%d poly=%d vel=%d tempo=%d",
			bar, bars, w, notesPerBar, polyphony, velocity, tempo)

		for n := 0; n < notesPerBar; n++ {
			local := barStart + float64(n)*duration
			pitches := make([]uint8, polyphony)
			for i := range pitches {
				pitches[i] = uint8(p.pitchAt(i, local, w))
			}
			t.Events = append(t.Events, score.Chord(origin+local, duration, velocity, pitches...))
		}
	}
	return t
}

// pitchAt reads voice i's curve at a pair-local offset, adds the blended
// melodic drift of both fragments, clamps and snaps the result
func (p *Pair) pitchAt(i int, offset, w float64) int {
	c := p.curve(i)
	cur, next := p.Current, p.Next
	gap := p.GapStart()

	position1 := math.Mod(offset, cur.TotalLength)
	position2 := gap + math.Mod(gap+offset, next.TotalLength)

	drift1 := (c.Evaluate(position1) - float64(cur.AvgPitch)) * p.opts.Variance
	drift2 := (c.Evaluate(position2) - float64(next.AvgPitch)) * p.opts.Variance
	drift := Blend(drift1, drift2, w)

	base := c.Evaluate(offset)
	raw := ClampPitch(base+drift, p.opts.PitchMin, p.opts.PitchMax)
	pitch := snapWithin(features.Round(raw), p.opts.PitchMin, p.opts.PitchMax)

	debug.LogEvery(64, "infill", "voice %d @%.2f base=%.2f drift=%.2f -> %d", i, offset, base, drift, pitch)
	return pitch
}
