// Package stats provides the output estimators of the simulation: a running
// mean and a confidence-interval mean with precision-based stopping.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// MeanEstimator accumulates a running mean and variance using Welford's
// recurrence.
type MeanEstimator struct {
	name string
	n    int
	mean float64
	m2   float64
}

// NewMeanEstimator creates an empty estimator.
func NewMeanEstimator(name string) *MeanEstimator {
	return &MeanEstimator{name: name}
}

// Name returns the estimator's label.
func (e *MeanEstimator) Name() string { return e.name }

// Reset discards all collected observations.
func (e *MeanEstimator) Reset() {
	e.n = 0
	e.mean = 0
	e.m2 = 0
}

// Collect adds one observation.
func (e *MeanEstimator) Collect(x float64) {
	e.n++
	delta := x - e.mean
	e.mean += delta / float64(e.n)
	e.m2 += delta * (x - e.mean)
}

// Estimate returns the sample mean, or NaN before any observation.
func (e *MeanEstimator) Estimate() float64 {
	if e.n == 0 {
		return math.NaN()
	}
	return e.mean
}

// Variance returns the unbiased sample variance, or NaN below two
// observations.
func (e *MeanEstimator) Variance() float64 {
	if e.n < 2 {
		return math.NaN()
	}
	return e.m2 / float64(e.n-1)
}

// Size returns the number of observations collected.
func (e *MeanEstimator) Size() int { return e.n }

// Stopping thresholds of the CI estimator.
const (
	ciMinSamples = 2  // below this no interval is meaningful
	ciPatience   = 32 // non-improving samples before giving up
)

// CIMeanEstimator estimates a mean together with a two-sided Student-t
// confidence interval and reports when the interval's relative half-width
// reaches the requested precision — or when it refuses to tighten.
type CIMeanEstimator struct {
	MeanEstimator
	level        float64
	relPrecision float64

	bestPrec float64
	stalled  int
}

// NewCIMeanEstimator creates an estimator for the given confidence level and
// target relative precision of the half-width.
func NewCIMeanEstimator(name string, level, relPrecision float64) *CIMeanEstimator {
	return &CIMeanEstimator{
		MeanEstimator: MeanEstimator{name: name},
		level:         level,
		relPrecision:  relPrecision,
		bestPrec:      math.Inf(1),
	}
}

// Reset discards all observations and the convergence history.
func (e *CIMeanEstimator) Reset() {
	e.MeanEstimator.Reset()
	e.bestPrec = math.Inf(1)
	e.stalled = 0
}

// Collect adds one observation and updates the convergence history.
func (e *CIMeanEstimator) Collect(x float64) {
	e.MeanEstimator.Collect(x)
	if e.n < ciMinSamples {
		return
	}
	p := e.RelativePrecision()
	if p < e.bestPrec {
		e.bestPrec = p
		e.stalled = 0
	} else {
		e.stalled++
	}
}

// HalfWidth returns the half-width of the confidence interval, or +Inf below
// the minimum sample count. A degenerate (zero) variance yields zero.
func (e *CIMeanEstimator) HalfWidth() float64 {
	if e.n < ciMinSamples {
		return math.Inf(1)
	}
	v := e.Variance()
	if v == 0 {
		return 0
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(e.n - 1)}
	q := t.Quantile(1 - (1-e.level)/2)
	return q * math.Sqrt(v/float64(e.n))
}

// Lower returns the lower bound of the confidence interval.
func (e *CIMeanEstimator) Lower() float64 { return e.Estimate() - e.HalfWidth() }

// Upper returns the upper bound of the confidence interval.
func (e *CIMeanEstimator) Upper() float64 { return e.Estimate() + e.HalfWidth() }

// StandardDeviation returns the sample standard deviation.
func (e *CIMeanEstimator) StandardDeviation() float64 {
	return math.Sqrt(e.Variance())
}

// RelativePrecision returns half-width / |mean|. A zero mean with a zero
// half-width reads as zero; a zero mean with a wider interval reads as +Inf.
func (e *CIMeanEstimator) RelativePrecision() float64 {
	hw := e.HalfWidth()
	if hw == 0 {
		return 0
	}
	m := math.Abs(e.Estimate())
	if m == 0 {
		return math.Inf(1)
	}
	return hw / m
}

// Done reports whether the target precision has been reached.
func (e *CIMeanEstimator) Done() bool {
	return e.n >= ciMinSamples && e.RelativePrecision() <= e.relPrecision
}

// Unstable reports whether the estimator has concluded the target precision
// cannot be reached: the mean is degenerate at zero with a non-degenerate
// spread after at least ciPatience samples, or the precision has not
// improved over the patience window.
func (e *CIMeanEstimator) Unstable() bool {
	if e.n < ciMinSamples || e.Done() {
		return false
	}
	if math.Abs(e.Estimate()) == 0 && e.HalfWidth() > 0 && e.n >= ciPatience {
		return true
	}
	return e.stalled >= ciPatience
}
