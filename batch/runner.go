package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"

	"go-infill/debug"
	"go-infill/infill"
	"go-infill/midi"
	"go-infill/score"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Runner executes jobs on a bounded pool of workers. Pairs share nothing
// but the cache of loaded inputs; each writes its own output file.
type Runner struct {
	Workers      int
	Interpolator *infill.Interpolator
	Load         LoadFunc

	mu    sync.Mutex
	cache map[string]loaded
}

type loaded struct {
	frag *score.Fragment
	err  error
}

// NewRunner returns a runner with one worker per CPU when workers <= 0
func NewRunner(ip *infill.Interpolator, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		Workers:      workers,
		Interpolator: ip,
		Load:         midi.LoadFragment,
		cache:        make(map[string]loaded),
	}
}

// Preload reads every distinct input once, in parallel
func (r *Runner) Preload(ctx context.Context, jobs []Job) {
	seen := make(map[string]bool)
	wg := sizedwaitgroup.New(r.Workers)
	for _, job := range jobs {
		for _, path := range job.Inputs {
			if seen[path] {
				continue
			}
			seen[path] = true
			if ctx.Err() != nil {
				wg.Wait()
				return
			}
			if err := wg.AddWithContext(ctx); err != nil {
				wg.Wait()
				return
			}
			go func(path string) {
				defer wg.Done()
				r.load(path)
			}(path)
		}
	}
	wg.Wait()
	debug.Log("batch", "preloaded %d inputs", len(seen))
}

// load returns a cached fragment, reading it on first use. Callers get a
// clone so jobs never share a fragment.
func (r *Runner) load(path string) (*score.Fragment, error) {
	r.mu.Lock()
	l, ok := r.cache[path]
	r.mu.Unlock()

	if !ok {
		f, err := r.Load(path)
		l = loaded{frag: f, err: err}
		r.mu.Lock()
		r.cache[path] = l
		r.mu.Unlock()
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.frag.Clone(), nil
}

// RunAll runs jobs and calls report with each outcome as it completes.
// report is called from worker goroutines, one call at a time. A failed
// job is logged and does not stop the others.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, report func(Outcome)) Summary {
	start := time.Now()
	var mu sync.Mutex
	summary := Summary{Total: len(jobs)}

	wg := sizedwaitgroup.New(r.Workers)
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if err := wg.AddWithContext(ctx); err != nil {
			break
		}
		go func(job Job) {
			defer wg.Done()
			out := run(job, r.Interpolator, r.load)
			if out.Err != nil {
				debug.Log("batch", "%v failed: %v", job, out.Err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.add(out)
			if report != nil {
				report(out)
			}
		}(job)
	}
	wg.Wait()

	summary.Elapsed = time.Since(start)
	return summary
}

// Summary totals a batch run
type Summary struct {
	Total     int
	Done      int
	Failed    int
	Generated int
	Bytes     int64
	Elapsed   time.Duration
}

func (s *Summary) add(out Outcome) {
	s.Done++
	if out.Err != nil {
		s.Failed++
		return
	}
	s.Bytes += out.Bytes
	for _, p := range out.Result.Pairs {
		s.Generated += p.Generated
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d written, %d failed, %d transition events, %s in %s",
		s.Done-s.Failed, s.Total, s.Failed, s.Generated,
		humanize.Bytes(uint64(s.Bytes)),
		durafmt.Parse(s.Elapsed).LimitFirstN(2).Format(shortUnits))
}
