package infill

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-infill/features"
	"go-infill/score"
)

var fourFour = score.Meter{Numerator: 4, Denominator: 4}

func line(name string, meter score.Meter, velocity uint8, pitches ...uint8) *score.Fragment {
	notes := make([]score.Note, len(pitches))
	for i, p := range pitches {
		notes[i] = score.Note{Start: float64(i), Duration: 1, Pitch: p, Velocity: velocity}
	}
	return score.NewFragment(name, meter, notes...)
}

func testOptions(bars int) Options {
	opts := DefaultOptions()
	opts.TransitionBars = bars
	opts.Transpose = false
	return opts
}

func generatedBetween(f *score.Fragment, from, to float64) []score.Event {
	var out []score.Event
	for _, e := range f.Events {
		if e.Offset >= from && e.Offset < to {
			out = append(out, e)
		}
	}
	return out
}

func TestInterpolateTwoBars(t *testing.T) {
	a := line("a", fourFour, 80, 60, 62, 64, 65)
	b := line("b", fourFour, 110, 67, 69, 71, 72)

	ip, err := New(testOptions(2))
	require.NoError(t, err)
	res, err := ip.Interpolate(a, b)
	require.NoError(t, err)

	out := res.Output
	assert.Equal(t, "a_b", out.Name)
	assert.Equal(t, 16.0, out.Duration())
	assert.Equal(t, 16, len(out.Events))

	gap := generatedBetween(out, 4, 12)
	require.Len(t, gap, 8)
	for i, e := range gap {
		assert.Equal(t, 4.0+float64(i), e.Offset)
		assert.Equal(t, 1.0, e.Duration())
		assert.Equal(t, 1, e.Voices())
		assert.True(t, IsDiatonic(int(e.Pitch(0))), "pitch %d", e.Pitch(0))
		if i < 4 {
			assert.Equal(t, uint8(90), e.Velocity())
		} else {
			assert.Equal(t, uint8(100), e.Velocity())
		}
	}

	// b is copied unchanged after the gap
	tail := generatedBetween(out, 12, 16)
	require.Len(t, tail, 4)
	assert.Equal(t, uint8(67), tail[0].Pitch(0))
	assert.Equal(t, uint8(110), tail[0].Velocity())

	require.Len(t, res.Pairs, 1)
	p := res.Pairs[0]
	assert.Equal(t, 12.0, p.GapStart)
	assert.Equal(t, 8, p.Generated)
	assert.Equal(t, []float64{120, 120}, p.BlendTempos)
}

func TestNextFragmentPlaysAtItsOwnTempo(t *testing.T) {
	a := line("a", fourFour, 80, 60, 62, 64, 65)
	a.Tempos = []score.TempoMark{{Offset: 0, BPM: 60}}
	b := line("b", fourFour, 110, 67, 69, 71, 72)

	ip, err := New(testOptions(2))
	require.NoError(t, err)
	res, err := ip.Interpolate(a, b)
	require.NoError(t, err)

	assert.Equal(t, []score.TempoMark{
		{Offset: 0, BPM: 60},
		{Offset: 4, BPM: 80},
		{Offset: 8, BPM: 100},
		{Offset: 12, BPM: 120},
	}, res.Output.Tempos)
	assert.Equal(t, res.Pairs[0].Next.AvgTempo, res.Output.Tempos[3].BPM)

	// a marking of its own is kept instead
	b.Tempos = []score.TempoMark{{Offset: 0, BPM: 90}}
	res, err = ip.Interpolate(a, b)
	require.NoError(t, err)
	last := res.Output.Tempos[len(res.Output.Tempos)-1]
	assert.Equal(t, score.TempoMark{Offset: 12, BPM: 90}, last)
	assert.Len(t, res.Output.Tempos, 4)

	// without a gap the default still replaces a's tempo
	ip, err = New(testOptions(0))
	require.NoError(t, err)
	b.Tempos = nil
	res, err = ip.Interpolate(a, b)
	require.NoError(t, err)
	assert.Equal(t, []score.TempoMark{{Offset: 0, BPM: 60}, {Offset: 4, BPM: 120}}, res.Output.Tempos)
}

func TestNewPairNeedsEnoughSamples(t *testing.T) {
	// zero-length notes collapse each melody to a single sample time
	blip := score.NewFragment("blip", fourFour, score.Note{Start: 0, Duration: 0, Pitch: 60, Velocity: 80})
	s, err := features.Extract(blip)
	require.NoError(t, err)

	_, err = NewPair(s, s, testOptions(2))
	assert.ErrorIs(t, err, score.ErrInsufficientCurveData)
}

func TestInterpolateWithoutGap(t *testing.T) {
	a := line("a", fourFour, 80, 60, 62, 64, 65)
	b := line("b", fourFour, 110, 67, 69, 71, 72)

	ip, err := New(testOptions(0))
	require.NoError(t, err)
	res, err := ip.Interpolate(a, b)
	require.NoError(t, err)

	assert.Equal(t, 8.0, res.Output.Duration())
	assert.Len(t, res.Output.Events, 8)
	assert.Equal(t, 4.0, res.Output.Events[4].Offset)
	assert.Equal(t, 0, res.Pairs[0].Generated)
}

func TestInterpolateBarLengthMismatch(t *testing.T) {
	a := line("a", fourFour, 80, 60, 62, 64, 65)
	b := line("b", score.Meter{Numerator: 3, Denominator: 4}, 80, 67, 69, 71)

	ip, err := New(testOptions(2))
	require.NoError(t, err)
	_, err = ip.Interpolate(a, b)
	assert.ErrorIs(t, err, score.ErrBarLengthMismatch)
}

func TestInterpolateIsDeterministic(t *testing.T) {
	a := line("a", fourFour, 80, 60, 64, 62, 67, 65, 69)
	b := line("b", fourFour, 100, 72, 71, 69, 67)

	ip, err := New(testOptions(3))
	require.NoError(t, err)
	first, err := ip.Interpolate(a, b)
	require.NoError(t, err)
	second, err := ip.Interpolate(a, b)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, uint8(60), a.Events[0].Notes[0].Pitch, "inputs are not modified")
}

func TestChainAppendsEveryFragmentOnce(t *testing.T) {
	a := line("a", fourFour, 80, 60, 62, 64, 65)
	b := line("b", fourFour, 100, 67, 69, 71, 72)
	c := line("c", fourFour, 60, 72, 71, 69, 67)

	ip, err := New(testOptions(1))
	require.NoError(t, err)
	res, err := ip.Chain(a, b, c)
	require.NoError(t, err)

	// a, gap, b, gap, c
	assert.Equal(t, "a_b_c", res.Output.Name)
	assert.Equal(t, 20.0, res.Output.Duration())
	require.Len(t, res.Pairs, 2)
	assert.Equal(t, 8.0, res.Pairs[0].GapStart)
	assert.Equal(t, 16.0, res.Pairs[1].GapStart)
	assert.Len(t, generatedBetween(res.Output, 16, 20), 4)
	assert.Equal(t, uint8(72), generatedBetween(res.Output, 16, 20)[0].Pitch(0))
}

func TestChainTransposesToReference(t *testing.T) {
	// G major, leaning on G and D
	g := score.NewFragment("g", fourFour,
		score.Note{Start: 0, Duration: 2, Pitch: 67, Velocity: 80},
		score.Note{Start: 2, Duration: 0.5, Pitch: 69, Velocity: 80},
		score.Note{Start: 2.5, Duration: 1, Pitch: 71, Velocity: 80},
		score.Note{Start: 3.5, Duration: 0.5, Pitch: 72, Velocity: 80},
		score.Note{Start: 4, Duration: 2, Pitch: 74, Velocity: 80},
		score.Note{Start: 6, Duration: 0.5, Pitch: 76, Velocity: 80},
		score.Note{Start: 6.5, Duration: 0.5, Pitch: 78, Velocity: 80},
		score.Note{Start: 7, Duration: 1, Pitch: 79, Velocity: 80},
	)

	opts := testOptions(2)
	opts.Transpose = true
	ip, err := New(opts)
	require.NoError(t, err)
	res, err := ip.Interpolate(g, g)
	require.NoError(t, err)

	assert.Equal(t, score.Key{Tonic: 7}, res.Pairs[0].FromKey)
	for _, e := range res.Output.Events {
		for _, n := range e.Notes {
			assert.True(t, IsDiatonic(int(n.Pitch)), "pitch %d at %g", n.Pitch, e.Offset)
		}
	}
	assert.Equal(t, uint8(72), res.Output.Events[0].Pitch(0))
	assert.Empty(t, res.Output.Keys)
}

func TestChainErrors(t *testing.T) {
	ip, err := New(testOptions(2))
	require.NoError(t, err)

	_, err = ip.Chain()
	assert.ErrorIs(t, err, score.ErrEmptyFragment)

	empty := &score.Fragment{Name: "empty", Meters: []score.Meter{fourFour}}
	_, err = ip.Interpolate(line("a", fourFour, 80, 60, 62), empty)
	assert.ErrorIs(t, err, score.ErrEmptyFragment)
}

func TestPolyphonicTransition(t *testing.T) {
	chords := &score.Fragment{
		Name:   "chords",
		Meters: []score.Meter{fourFour},
		Events: []score.Event{
			score.Chord(0, 1, 90, 60, 64, 67),
			score.Chord(1, 1, 90, 62, 65, 69),
			score.Chord(2, 1, 90, 64, 67, 71),
			score.Chord(3, 1, 90, 65, 69, 72),
		},
	}
	melody := line("m", fourFour, 90, 72, 71, 69, 67)

	ip, err := New(testOptions(4))
	require.NoError(t, err)
	res, err := ip.Interpolate(chords, melody)
	require.NoError(t, err)

	gap := generatedBetween(res.Output, 4, 20)
	require.Len(t, gap, 16)
	// polyphony blends from 3 toward 1: 2.6, 2.2, 1.8, 1.4
	assert.Equal(t, 3, gap[0].Voices())
	assert.Equal(t, 2, gap[4].Voices())
	assert.Equal(t, 2, gap[8].Voices())
	assert.Equal(t, 1, gap[12].Voices())
}

func TestNewPairWithoutGapFitsNothing(t *testing.T) {
	s, err := features.Extract(line("a", fourFour, 80, 60, 62, 64, 65))
	require.NoError(t, err)

	p, err := NewPair(s, s, testOptions(0))
	require.NoError(t, err)
	assert.Empty(t, p.Curves)
	assert.Equal(t, 4.0, p.GapStart())
	assert.Empty(t, p.Generate(0).Events)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := []func(*Options){
		func(o *Options) { o.TransitionBars = -1 },
		func(o *Options) { o.Smoothing = -0.5 },
		func(o *Options) { o.PitchMin = -1 },
		func(o *Options) { o.PitchMax = 128 },
		func(o *Options) { o.PitchMin, o.PitchMax = 60, 60 },
	}
	for _, mutate := range bad {
		opts := DefaultOptions()
		mutate(&opts)
		assert.Error(t, opts.Validate())
		_, err := New(opts)
		assert.Error(t, err)
	}
}

func TestBlendFeature(t *testing.T) {
	cur := &features.Set{NotesPerBar: 4, Polyphony: 1, Velocity: 80, AvgTempo: 100, AvgPitch: 60}
	next := &features.Set{NotesPerBar: 8, Polyphony: 3, Velocity: 110, AvgTempo: 140, AvgPitch: 72}

	assert.Equal(t, 6, BlendFeature(NotesPerBar, cur, next, 0.5))
	assert.Equal(t, 2, BlendFeature(Polyphony, cur, next, 0.5))
	assert.Equal(t, 90, BlendFeature(Velocity, cur, next, 1.0/3))
	assert.Equal(t, 120, BlendFeature(Tempo, cur, next, 0.5))
	assert.Equal(t, 66, BlendFeature(Pitch, cur, next, 0.5))
	assert.Equal(t, "velocity", Velocity.String())
}

func TestSnapWithin(t *testing.T) {
	assert.Equal(t, 61+1, snapWithin(61, 10, 117))
	assert.Equal(t, 60, snapWithin(60, 10, 117))
	assert.Equal(t, 115, snapWithin(116, 10, 116), "snaps down at the top of the range")
	assert.Equal(t, 11, snapWithin(10, 10, 117))
}

func TestPitchProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("snapped pitches are diatonic and at most one semitone up", prop.ForAll(
		func(p int) bool {
			s := SnapDiatonic(p)
			return IsDiatonic(s) && (s == p || s == p+1)
		},
		gen.IntRange(0, 126),
	))

	properties.Property("snap within default range stays in range", prop.ForAll(
		func(p int) bool {
			s := snapWithin(p, 10, 117)
			return s >= 10 && s <= 117 && IsDiatonic(s)
		},
		gen.IntRange(10, 117),
	))

	properties.Property("clamp stays in range", prop.ForAll(
		func(p float64) bool {
			c := ClampPitch(p, 10, 117)
			return c >= 10 && c <= 117
		},
		gen.Float64Range(-500, 500),
	))

	properties.Property("blend hits both endpoints", prop.ForAll(
		func(a, b float64) bool {
			return Blend(a, b, 0) == a && Blend(a, b, 1) == b
		},
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
	))

	properties.Property("relative position is strictly inside (0, 1)", prop.ForAll(
		func(bars int) bool {
			for bar := 1; bar <= bars; bar++ {
				w := RelativePosition(bar, bars)
				if w <= 0 || w >= 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

func TestGeneratedPitchProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	ip, err := New(testOptions(2))
	require.NoError(t, err)

	properties.Property("every note of a gap is diatonic and in range", prop.ForAll(
		func(first, second []int) bool {
			a := line("a", fourFour, 80, toPitches(first)...)
			b := line("b", fourFour, 100, toPitches(second)...)
			res, err := ip.Interpolate(a, b)
			if err != nil {
				return false
			}
			for _, e := range generatedBetween(res.Output, 8, 16) {
				for _, n := range e.Notes {
					if n.Pitch < 10 || n.Pitch > 117 || !IsDiatonic(int(n.Pitch)) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(20, 110)),
		gen.SliceOfN(8, gen.IntRange(20, 110)),
	))

	properties.TestingRun(t)
}

func toPitches(ps []int) []uint8 {
	out := make([]uint8, len(ps))
	for i, p := range ps {
		out[i] = uint8(p)
	}
	return out
}
