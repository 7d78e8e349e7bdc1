package infill

import (
	"go-infill/score"
)

// Assembler concatenates fragments and generated transitions into a single
// output fragment. It is append-only with a single writer.
type Assembler struct {
	out *score.Fragment
}

// NewAssembler starts an output stream in the given bar length
func NewAssembler(name string, barLength float64) *Assembler {
	return &Assembler{
		out: &score.Fragment{
			Name:   name,
			Meters: []score.Meter{score.MeterForBarLength(barLength)},
		},
	}
}

// AppendFragment copies f into the stream shifted to start at offset. A
// fragment without a tempo marking at its start gets the default tempo
// there, so it never inherits the tempo of whatever precedes it.
func (a *Assembler) AppendFragment(f *score.Fragment, offset float64) {
	for _, e := range f.Events {
		a.out.Events = append(a.out.Events, e.Shift(offset))
	}
	if !f.HasTempoAt(0) {
		a.AppendTempo(score.TempoMark{Offset: offset, BPM: score.DefaultTempo})
	}
	for _, t := range f.Tempos {
		a.AppendTempo(score.TempoMark{Offset: t.Offset + offset, BPM: t.BPM})
	}
}

// AppendTempo adds a tempo change at an absolute offset
func (a *Assembler) AppendTempo(t score.TempoMark) {
	a.out.Tempos = append(a.out.Tempos, t)
}

// AppendTransition adds generated notes and tempo changes, whose offsets
// are already absolute
func (a *Assembler) AppendTransition(t Transition) {
	a.out.Events = append(a.out.Events, t.Events...)
	a.out.Tempos = append(a.out.Tempos, t.Tempos...)
}

// Fragment returns the assembled stream, ordered and without key markers
func (a *Assembler) Fragment() *score.Fragment {
	out := a.out.Clone()
	out.StripKeys()
	out.Sort()
	return out
}
