// Package curve fits smoothing splines through the melodic samples of two
// fragments so a pitch trend can be read anywhere in the gap between them.
package curve

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"go-infill/debug"
	"go-infill/features"
	"go-infill/score"
)

// MinPoints is the fewest distinct sample times a curve can be fitted to
const MinPoints = 4

// DefaultSmoothing trades closeness to the samples against curvature
const DefaultSmoothing = 1.0

// Curve is a fitted cubic smoothing spline. It is immutable once fit.
type Curve struct {
	spline *interp.NaturalCubic
	lo, hi float64
	knots  int
}

// FitPair fits voice samples of a current and a next fragment, the latter
// moved to start at gapStart
func FitPair(begin, end features.Melody, gapStart, smoothing float64) (*Curve, error) {
	points := make(features.Melody, 0, len(begin)+len(end))
	points = append(points, begin...)
	points = append(points, end.Shift(gapStart)...)

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.Offset, p.Pitch
	}
	return Fit(xs, ys, smoothing)
}

// Fit fits a cubic smoothing spline through (xs, ys). Samples sharing a time
// are averaged. A smoothing of 0 interpolates the samples exactly.
func Fit(xs, ys []float64, smoothing float64) (*Curve, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("curve: %d times but %d values", len(xs), len(ys))
	}
	if smoothing < 0 {
		return nil, fmt.Errorf("curve: negative smoothing %g", smoothing)
	}

	xs, ys = mergeSamples(xs, ys)
	if len(xs) < MinPoints {
		return nil, fmt.Errorf("curve: %d distinct samples, need %d: %w", len(xs), MinPoints, score.ErrInsufficientCurveData)
	}

	g := ys
	if smoothing > 0 {
		var err error
		g, err = smooth(xs, ys, smoothing)
		if err != nil {
			return nil, err
		}
	}

	// The smoothing spline is the natural cubic spline through the
	// smoothed values.
	nc := &interp.NaturalCubic{}
	if err := nc.Fit(xs, g); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}

	debug.Log("curve", "fit %d knots over [%.2f, %.2f] lambda=%g", len(xs), xs[0], xs[len(xs)-1], smoothing)
	return &Curve{spline: nc, lo: xs[0], hi: xs[len(xs)-1], knots: len(xs)}, nil
}

// Evaluate returns the pitch estimate at time x. Times outside the fitted
// domain are clamped to its ends.
func (c *Curve) Evaluate(x float64) float64 {
	x = max(c.lo, min(c.hi, x))
	return c.spline.Predict(x)
}

// Domain returns the first and last sample time
func (c *Curve) Domain() (lo, hi float64) {
	return c.lo, c.hi
}

// Knots returns the number of distinct sample times
func (c *Curve) Knots() int {
	return c.knots
}

// mergeSamples sorts by time and averages values that share a time
func mergeSamples(xs, ys []float64) ([]float64, []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	var mx, my []float64
	count := 0
	for _, i := range idx {
		if len(mx) > 0 && xs[i]-mx[len(mx)-1] < 1e-9 {
			count++
			last := len(my) - 1
			my[last] += (ys[i] - my[last]) / float64(count)
			continue
		}
		mx = append(mx, xs[i])
		my = append(my, ys[i])
		count = 1
	}
	return mx, my
}

// smooth solves the Reinsch system (R + λQᵀQ)γ = Qᵀy and returns the
// smoothed ordinates g = y - λQγ
func smooth(xs, ys []float64, lambda float64) ([]float64, error) {
	n := len(xs)
	m := n - 2

	h := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
	}

	q := mat.NewDense(n, m, nil)
	for j := 0; j < m; j++ {
		q.Set(j, j, 1/h[j])
		q.Set(j+1, j, -1/h[j]-1/h[j+1])
		q.Set(j+2, j, 1/h[j+1])
	}

	var qtq mat.Dense
	qtq.Mul(q.T(), q)

	a := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			r := 0.0
			switch j - i {
			case 0:
				r = (h[i] + h[i+1]) / 3
			case 1:
				r = h[i+1] / 6
			}
			a.SetSym(i, j, r+lambda*qtq.At(i, j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("curve: smoothing system is not positive definite")
	}

	y := mat.NewVecDense(n, ys)
	var qty mat.VecDense
	qty.MulVec(q.T(), y)

	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, &qty); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}

	var qg mat.VecDense
	qg.MulVec(q, &gamma)

	g := make([]float64, n)
	for i := range g {
		g[i] = ys[i] - lambda*qg.AtVec(i)
	}
	return g, nil
}
