package main

import (
	"fmt"
	"os"

	"go-infill/features"
	"go-infill/midi"
	"go-infill/score"
	"go-infill/widgets"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		return
	}

	frag, err := midi.LoadFragment(os.Args[2])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "notes":
		dumpNotes(frag)
	case "meta":
		dumpMeta(frag)
	case "melody":
		dumpMelodies(frag)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("SMF dump")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  notes FILE   - List note events as read")
	fmt.Println("  meta FILE    - Show meter, tempo and key markers")
	fmt.Println("  melody FILE  - Show the per-voice melody reductions")
}

func dumpNotes(f *score.Fragment) {
	fmt.Printf("=== %s: %d events, %d notes ===\n", f.Name, len(f.Events), f.NoteCount())
	for _, e := range f.Events {
		fmt.Printf("%8.3f  ", e.Offset)
		if e.IsChord() {
			fmt.Printf("[%d] ", e.Voices())
		}
		for i, n := range e.Notes {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Printf("%s/%d len=%.3f", widgets.NoteName(n.Pitch), n.Velocity, n.Duration)
		}
		fmt.Println()
	}
}

func dumpMeta(f *score.Fragment) {
	fmt.Printf("=== %s ===\n", f.Name)
	for _, m := range f.Meters {
		fmt.Printf("meter  %8.3f  %s\n", m.Offset, m)
	}
	for _, t := range f.Tempos {
		fmt.Printf("tempo  %8.3f  %.2f bpm\n", t.Offset, t.BPM)
	}
	for _, k := range f.Keys {
		fmt.Printf("key    %8.3f  %s\n", k.Offset, k.Key)
	}
	bar, err := f.BarLength()
	if err != nil {
		fmt.Printf("bar length: %v\n", err)
		return
	}
	fmt.Printf("bar length %.3f, duration %.3f, estimated key %s\n", bar, f.Duration(), score.EstimateKey(f))
}

func dumpMelodies(f *score.Fragment) {
	set, err := features.Extract(f)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for k, m := range set.Melodies {
		fmt.Printf("=== voice %d: %d points ===\n", k, len(m))
		for _, p := range m {
			fmt.Printf("%8.3f  %.0f\n", p.Offset, p.Pitch)
		}
	}
}
