package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"go-infill/batch"
	"go-infill/config"
	"go-infill/debug"
	"go-infill/features"
	"go-infill/infill"
	"go-infill/midi"
	"go-infill/score"
	"go-infill/theme"
	"go-infill/tui"
	"go-infill/widgets"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	if cfg.Log.Debug {
		if err := debug.Enable(cfg.Log.Path); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	th := theme.New(theme.Default())

	switch os.Args[1] {
	case "join":
		err = join(cfg, os.Args[2:], th)
	case "batch":
		err = runBatch(cfg, os.Args[2:], th)
	case "inspect":
		err = inspect(cfg, os.Args[2:], th)
	case "manifests":
		err = manifests(os.Args[2:], th)
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, th.Bad().Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("go-infill - generate transitions between MIDI fragments")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  join [flags] A.mid B.mid [C.mid ...]  - join fragments with generated transitions")
	fmt.Println("  batch [flags]                         - join every ordered pair in a folder")
	fmt.Println("  inspect FILE                          - print features and a piano roll")
	fmt.Println("  manifests DIR                         - list batch runs recorded in an output folder")
	fmt.Println("")
	fmt.Println("Run 'go-infill COMMAND -h' for flags.")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// infillFlags registers the interpolation flags shared by join and batch
func infillFlags(fs *flag.FlagSet, opts *infill.Options) *bool {
	fs.IntVar(&opts.TransitionBars, "length", opts.TransitionBars, "transition length in bars")
	fs.Float64Var(&opts.Variance, "variance", opts.Variance, "weight of the source melodies in the transition")
	fs.Float64Var(&opts.Smoothing, "smoothing", opts.Smoothing, "spline smoothing factor, 0 interpolates")
	fs.BoolVar(&opts.TrustKeySignature, "trust-key", opts.TrustKeySignature, "use key signatures instead of estimating the key")
	return fs.Bool("no-transpose", !opts.Transpose, "keep fragments in their own keys")
}

func join(cfg *config.Config, args []string, th *theme.Theme) error {
	opts := cfg.Infill
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	output := fs.String("o", "", "output file (default: <a>_<b>.mid next to the first input)")
	showRoll := fs.Bool("roll", false, "print the joined piece with generated bars shaded")
	noTranspose := infillFlags(fs, &opts)
	fs.Parse(args)
	opts.Transpose = !*noTranspose

	inputs := fs.Args()
	if len(inputs) < 2 {
		return errors.New("join needs at least two input files")
	}

	ip, err := infill.New(opts)
	if err != nil {
		return err
	}

	job := batch.Job{Inputs: inputs, Output: *output}
	if job.Output == "" {
		stems := make([]string, len(inputs))
		for i, in := range inputs {
			stems[i] = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		}
		job.Output = filepath.Join(filepath.Dir(inputs[0]), strings.Join(stems, "_")+".mid")
	}

	out := batch.Run(job, ip)
	if out.Err != nil {
		return out.Err
	}

	fmt.Println(th.Good().Render("wrote " + out.Job.Output))
	for _, p := range out.Result.Pairs {
		fmt.Printf("  %s (%s) -> %s (%s): %d transition events\n", p.From, p.FromKey, p.To, p.ToKey, p.Generated)
		fmt.Println("  " + widgets.RenderSeries("tempo", p.BlendTempos))
	}

	if *showRoll {
		roll := widgets.PianoRoll{Theme: th, StepsPerQuarter: 2, MaxColumns: 120}
		for _, p := range out.Result.Pairs {
			gapLen := float64(opts.TransitionBars) * p.Current.BarLength
			roll.BarLength = p.Current.BarLength
			roll.Highlight = append(roll.Highlight, widgets.Region{From: p.GapStart - gapLen, To: p.GapStart})
		}
		fmt.Println()
		fmt.Println(roll.Render(out.Result.Output))
	}
	return nil
}

func runBatch(cfg *config.Config, args []string, th *theme.Theme) error {
	opts := cfg.Infill
	opts.TransitionBars = cfg.Batch.TransitionBars

	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fs.String("in", ".", "folder of input fragments")
	outDir := fs.String("out", "", "output folder (default: <in>/transitions)")
	workers := fs.Int("workers", cfg.Batch.Workers, "parallel jobs, 0 = one per CPU")
	noTUI := fs.Bool("no-tui", false, "print progress lines instead of the interactive view")
	noTranspose := infillFlags(fs, &opts)
	fs.Parse(args)
	opts.Transpose = !*noTranspose

	if *outDir == "" {
		*outDir = filepath.Join(*in, "transitions")
	}

	ip, err := infill.New(opts)
	if err != nil {
		return err
	}

	inputs, err := batch.ListInputs(*in, cfg.Batch.Patterns)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs matching %v in %s", cfg.Batch.Patterns, *in)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return err
	}

	jobs := batch.Pairs(inputs, *outDir)
	runner := batch.NewRunner(ip, *workers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	runner.Preload(ctx, jobs)
	manifest := batch.NewManifest(opts)

	if *noTUI {
		summary := runner.RunAll(ctx, jobs, func(o batch.Outcome) {
			manifest.Add(o)
			if o.Err != nil {
				fmt.Println(th.Bad().Render("✗ "+o.Job.String()) + " " + o.Err.Error())
				return
			}
			fmt.Println(th.Good().Render("✓ " + o.Job.String()))
		})
		fmt.Println(summary.String())
		return saveManifest(manifest, *outDir, th)
	}

	outcomes := make(chan batch.Outcome, len(jobs))
	finished := make(chan batch.Summary, 1)
	ran := make(chan struct{})
	go func() {
		defer close(ran)
		summary := runner.RunAll(ctx, jobs, func(o batch.Outcome) {
			manifest.Add(o)
			outcomes <- o
		})
		close(outcomes)
		finished <- summary
	}()

	p := tea.NewProgram(tui.NewModel(th, len(jobs), outcomes, finished, cancel))
	final, err := p.Run()
	if err != nil {
		cancel()
		<-ran
		return err
	}

	// jobs already started finish even after the view is closed
	<-ran
	if s := final.(tui.Model).Summary(); s != nil {
		fmt.Println(s.String())
	} else {
		fmt.Println(th.Dim().Render("stopped"))
	}
	return saveManifest(manifest, *outDir, th)
}

func saveManifest(m *batch.Manifest, dir string, th *theme.Theme) error {
	path, err := m.Save(dir)
	if err != nil {
		return err
	}
	fmt.Println(th.Dim().Render("manifest " + path))
	return nil
}

func inspect(cfg *config.Config, args []string, th *theme.Theme) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	steps := fs.Int("steps", 4, "piano roll steps per quarter note")
	cols := fs.Int("cols", 96, "piano roll width")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("inspect needs exactly one file")
	}

	frag, err := midi.LoadFragment(fs.Arg(0))
	if err != nil {
		return err
	}
	set, err := features.Extract(frag)
	if err != nil {
		return err
	}

	fmt.Println(th.Header().Render(frag.Name))
	if len(frag.Meters) > 0 {
		fmt.Printf("meter        %s\n", frag.Meters[0])
	}
	fmt.Printf("notes        %d\n", frag.NoteCount())
	fmt.Printf("bars         %d (bar length %g)\n", set.Bars, set.BarLength)
	fmt.Printf("length       %g quarters\n", set.TotalLength)
	fmt.Printf("notes/bar    %d\n", set.NotesPerBar)
	fmt.Printf("polyphony    %d\n", set.Polyphony)
	fmt.Printf("velocity     %d\n", set.Velocity)
	fmt.Printf("avg pitch    %d (%s)\n", set.AvgPitch, widgets.NoteName(uint8(set.AvgPitch)))
	fmt.Printf("tempo        %g bpm\n", set.AvgTempo)
	for _, k := range frag.Keys {
		fmt.Printf("key sig      %s at %g\n", k.Key, k.Offset)
	}
	_, est := score.TransposeToReference(frag, cfg.Infill.TrustKeySignature)
	fmt.Printf("key          %s (shift %+d)\n", est, est.ReferenceShift())
	fmt.Println()

	roll := widgets.PianoRoll{
		Theme:           th,
		StepsPerQuarter: *steps,
		MaxColumns:      *cols,
		BarLength:       set.BarLength,
	}
	fmt.Println(roll.Render(frag))
	fmt.Println()
	fmt.Println(widgets.RenderVelocityLegend(th, 8))
	return nil
}

func manifests(args []string, th *theme.Theme) error {
	fs := flag.NewFlagSet("manifests", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("manifests needs an output folder")
	}
	dir := fs.Arg(0)

	infos, err := batch.ListManifests(dir)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println(th.Dim().Render("no manifests in " + dir))
		return nil
	}

	for _, info := range infos {
		m, err := batch.LoadManifest(filepath.Join(dir, info.Filename))
		if err != nil {
			fmt.Println(th.Bad().Render(info.Filename) + " " + err.Error())
			continue
		}
		failed := 0
		for _, e := range m.Entries {
			if e.Error != "" {
				failed++
			}
		}
		fmt.Printf("%s  %s  %d jobs, %d failed, %d bars\n",
			th.Header().Render(info.Timestamp.Format("2006-01-02 15:04:05")),
			info.Filename, len(m.Entries), failed, m.Options.TransitionBars)
	}
	return nil
}
