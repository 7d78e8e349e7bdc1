package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-infill/score"
	"go-infill/theme"
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns a pitch as name and octave, e.g. 60 -> "C4"
func NoteName(pitch uint8) string {
	return fmt.Sprintf("%s%d", noteNames[pitch%12], int(pitch)/12-1)
}

// Region is a time span to shade, such as a generated gap
type Region struct {
	From, To float64
}

// PianoRoll renders a fragment as rows of pitches against time
type PianoRoll struct {
	Theme           *theme.Theme // nil renders without colour
	StepsPerQuarter int
	MaxColumns      int
	BarLength       float64
	Highlight       []Region
}

type cellKind int

const (
	cellEmpty cellKind = iota
	cellHold
	cellStart
)

type cell struct {
	kind     cellKind
	velocity uint8
}

// Render draws the fragment, highest pitch first
func (p PianoRoll) Render(f *score.Fragment) string {
	if len(f.Events) == 0 {
		return "(empty)"
	}

	steps := p.StepsPerQuarter
	if steps <= 0 {
		steps = 2
	}
	maxCols := p.MaxColumns
	if maxCols <= 0 {
		maxCols = 96
	}

	duration := f.Duration()
	step := 1 / float64(steps)
	cols := int(math.Ceil(duration / step))
	if cols > maxCols {
		step = duration / float64(maxCols)
		cols = maxCols
	}

	lo, hi := uint8(127), uint8(0)
	for _, e := range f.Events {
		for _, n := range e.Notes {
			lo = min(lo, n.Pitch)
			hi = max(hi, n.Pitch)
		}
	}

	rows := make(map[uint8][]cell)
	for pitch := int(lo); pitch <= int(hi); pitch++ {
		rows[uint8(pitch)] = make([]cell, cols)
	}
	for _, e := range f.Events {
		for _, n := range e.Notes {
			row := rows[n.Pitch]
			start := min(cols-1, int(n.Start/step))
			end := max(start, min(cols-1, int(math.Ceil(n.End()/step))-1))
			for c := start + 1; c <= end; c++ {
				if row[c].kind == cellEmpty {
					row[c] = cell{kind: cellHold, velocity: n.Velocity}
				}
			}
			row[start] = cell{kind: cellStart, velocity: n.Velocity}
		}
	}

	syms := theme.New(theme.Default()).Symbols
	if p.Theme != nil {
		syms = p.Theme.Symbols
	}

	var out strings.Builder
	for pitch := int(hi); pitch >= int(lo); pitch-- {
		out.WriteString(fmt.Sprintf("%4s ", NoteName(uint8(pitch))))
		for c, cl := range rows[uint8(pitch)] {
			at := (float64(c) + 0.5) * step
			out.WriteString(p.renderCell(cl, syms, p.highlighted(at), p.barStart(c, step)))
		}
		if pitch > int(lo) {
			out.WriteString("\n")
		}
	}
	return out.String()
}

func (p PianoRoll) renderCell(cl cell, syms theme.Symbols, shaded, bar bool) string {
	var r rune
	switch cl.kind {
	case cellStart:
		r = syms.NoteStart
	case cellHold:
		r = syms.NoteHold
	default:
		switch {
		case bar:
			r = syms.BarLine
		case shaded:
			r = syms.Gap
		default:
			r = syms.Empty
		}
	}

	if p.Theme == nil {
		return string(r)
	}
	style := lipgloss.NewStyle().Foreground(p.Theme.Muted())
	if cl.kind != cellEmpty {
		style = lipgloss.NewStyle().Foreground(p.Theme.Velocity(cl.velocity))
	}
	return style.Render(string(r))
}

func (p PianoRoll) highlighted(at float64) bool {
	for _, r := range p.Highlight {
		if at >= r.From && at < r.To {
			return true
		}
	}
	return false
}

// barStart reports whether column c is the first one of a bar
func (p PianoRoll) barStart(c int, step float64) bool {
	if p.BarLength <= 0 || c == 0 {
		return false
	}
	prev := math.Floor(float64(c-1) * step / p.BarLength)
	cur := math.Floor(float64(c) * step / p.BarLength)
	return cur > prev
}
