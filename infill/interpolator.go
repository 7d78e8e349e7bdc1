// Package infill generates transitions between fragments: it blends the
// features of two fragments bar by bar across a gap, reads pitches from
// smoothing curves fitted over both melodies and assembles the result.
package infill

import (
	"fmt"
	"math"
	"strings"

	"go-infill/debug"
	"go-infill/features"
	"go-infill/score"
)

// PairSummary describes one generated gap
type PairSummary struct {
	From, To    string
	FromKey     score.Key
	ToKey       score.Key
	Current     *features.Set
	Next        *features.Set
	GapStart    float64
	Generated   int
	BlendTempos []float64
}

// Result is the assembled output of a chain
type Result struct {
	Output *score.Fragment
	Pairs  []PairSummary
}

// Interpolator runs the pairwise transition algorithm over a chain
type Interpolator struct {
	opts Options
}

// New returns an interpolator with validated options
func New(opts Options) (*Interpolator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Interpolator{opts: opts}, nil
}

// Options returns the settings in use
func (ip *Interpolator) Options() Options {
	return ip.opts
}

// Interpolate joins two fragments with one generated transition
func (ip *Interpolator) Interpolate(a, b *score.Fragment) (*Result, error) {
	return ip.Chain(a, b)
}

// Chain joins fragments left to right: each fragment is followed by a
// transition into the next one, and every fragment is appended exactly once.
func (ip *Interpolator) Chain(fragments ...*score.Fragment) (*Result, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: no fragments given", score.ErrEmptyFragment)
	}

	prepared := make([]*score.Fragment, len(fragments))
	keys := make([]score.Key, len(fragments))
	for i, f := range fragments {
		prepared[i] = f.Clone()
		if ip.opts.Transpose {
			prepared[i], keys[i] = score.TransposeToReference(f, ip.opts.TrustKeySignature)
			debug.Log("infill", "%s: key %v, shift %+d", f.Name, keys[i], keys[i].ReferenceShift())
		}
	}

	barLength, err := prepared[0].BarLength()
	if err != nil {
		return nil, err
	}

	current, err := features.Extract(prepared[0])
	if err != nil {
		return nil, err
	}

	asm := NewAssembler(outputName(prepared), barLength)
	asm.AppendFragment(prepared[0], 0)

	res := &Result{}
	origin := 0.0
	for i := 1; i < len(prepared); i++ {
		bl, err := prepared[i].BarLength()
		if err != nil {
			return nil, err
		}
		if math.Abs(bl-barLength) > 1e-9 {
			return nil, fmt.Errorf("%s (%g) and %s (%g): %w",
				prepared[i-1].Name, barLength, prepared[i].Name, bl, score.ErrBarLengthMismatch)
		}

		next, err := features.Extract(prepared[i])
		if err != nil {
			return nil, err
		}

		pair, err := NewPair(current, next, ip.opts)
		if err != nil {
			return nil, fmt.Errorf("%s -> %s: %w", prepared[i-1].Name, prepared[i].Name, err)
		}

		t := pair.Generate(origin)
		asm.AppendTransition(t)
		asm.AppendFragment(prepared[i], t.GapStart)

		summary := PairSummary{
			From:      prepared[i-1].Name,
			To:        prepared[i].Name,
			FromKey:   keys[i-1],
			ToKey:     keys[i],
			Current:   current,
			Next:      next,
			GapStart:  t.GapStart,
			Generated: len(t.Events),
		}
		for _, tm := range t.Tempos {
			summary.BlendTempos = append(summary.BlendTempos, tm.BPM)
		}
		res.Pairs = append(res.Pairs, summary)

		debug.Log("infill", "%s -> %s: %d events, gap at %.2f", summary.From, summary.To, len(t.Events), t.GapStart)
		origin = t.GapStart
		current = next
	}

	res.Output = asm.Fragment()
	return res, nil
}

func outputName(fragments []*score.Fragment) string {
	names := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return strings.Join(names, "_")
}
