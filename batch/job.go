// Package batch runs interpolation jobs: a single chain for the command
// line, or every ordered pair of a folder for dataset generation.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-infill/debug"
	"go-infill/infill"
	"go-infill/midi"
	"go-infill/score"
)

// DefaultPatterns are the file globs picked up from an input folder
var DefaultPatterns = []string{"*.mid", "*.midi"}

// Job joins Inputs in order and writes the result to Output
type Job struct {
	Inputs []string
	Output string
}

func (j Job) String() string {
	names := make([]string, len(j.Inputs))
	for i, in := range j.Inputs {
		names[i] = filepath.Base(in)
	}
	return strings.Join(names, " + ") + " -> " + filepath.Base(j.Output)
}

// Outcome is what happened to one job
type Outcome struct {
	Job     Job
	Result  *infill.Result
	Bytes   int64
	Err     error
	Elapsed time.Duration
}

// LoadFunc loads one input file
type LoadFunc func(path string) (*score.Fragment, error)

// Run loads, interpolates and writes one job. Nothing is written when any
// step fails.
func Run(job Job, ip *infill.Interpolator) Outcome {
	return run(job, ip, midi.LoadFragment)
}

func run(job Job, ip *infill.Interpolator, load LoadFunc) (out Outcome) {
	start := time.Now()
	out = Outcome{Job: job}
	defer func() { out.Elapsed = time.Since(start) }()

	if len(job.Inputs) < 2 {
		out.Err = fmt.Errorf("need at least two inputs, got %d", len(job.Inputs))
		return out
	}

	fragments := make([]*score.Fragment, len(job.Inputs))
	for i, path := range job.Inputs {
		f, err := load(path)
		if err != nil {
			out.Err = err
			return out
		}
		fragments[i] = f
	}

	res, err := ip.Chain(fragments...)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res

	n, err := midi.WriteFragment(res.Output, job.Output)
	if err != nil {
		out.Err = err
		return out
	}
	out.Bytes = n
	debug.Log("batch", "%v: %d bytes", job, n)
	return out
}

// ListInputs returns the files in dir matching any pattern, sorted by name
func ListInputs(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Pairs builds a job for every ordered pair of inputs, a file paired with
// itself included, writing <a>_<b>.mid into outDir
func Pairs(inputs []string, outDir string) []Job {
	jobs := make([]Job, 0, len(inputs)*len(inputs))
	for _, a := range inputs {
		for _, b := range inputs {
			name := stem(a) + "_" + stem(b) + ".mid"
			jobs = append(jobs, Job{
				Inputs: []string{a, b},
				Output: filepath.Join(outDir, name),
			})
		}
	}
	return jobs
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
