package profile

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fwhmPerSigma converts a full width at half maximum to a Gaussian sigma.
const fwhmPerSigma = 2.3548200450309493

const (
	minInitialSigma = 0.5
	maxDamping      = 1e12
	minDamping      = 1e-12
	minCurvature    = 1e-9

	// pointSigma is the width below which a line is narrower than a pixel
	// and the fit keeps shrinking sigma without moving the center.
	pointSigma = 0.25
)

// FitOptions tunes the Levenberg-Marquardt refinement.
type FitOptions struct {
	// MaxIterations bounds the number of accepted or rejected LM steps.
	MaxIterations int
	// Tolerance is the relative cost reduction below which the fit is
	// considered converged.
	Tolerance float64
}

// DefaultFitOptions returns the settings used by DefaultEstimator.
func DefaultFitOptions() FitOptions {
	return FitOptions{MaxIterations: 100, Tolerance: 1e-9}
}

// GaussianFit holds the parameters of A*exp(-(x-Center)^2/(2*Sigma^2)) + Offset
// fitted to a profile, indexed by sample position.
type GaussianFit struct {
	Amplitude  float64
	Center     float64
	Sigma      float64
	Offset     float64
	Iterations int
	// Residual is the final sum of squared residuals.
	Residual float64
}

func (g GaussianFit) at(x float64) float64 {
	d := x - g.Center
	return g.Amplitude*math.Exp(-d*d/(2*g.Sigma*g.Sigma)) + g.Offset
}

// Estimator locates the laser line in a raw profile by fitting a Gaussian.
type Estimator struct {
	opts FitOptions
}

// NewEstimator returns an Estimator using opts; zero fields fall back to
// DefaultFitOptions.
func NewEstimator(opts FitOptions) *Estimator {
	def := DefaultFitOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 || math.IsNaN(opts.Tolerance) {
		opts.Tolerance = def.Tolerance
	}
	return &Estimator{opts: opts}
}

// DefaultEstimator returns an Estimator with DefaultFitOptions.
func DefaultEstimator() *Estimator {
	return NewEstimator(DefaultFitOptions())
}

// Options reports the effective fit settings.
func (e *Estimator) Options() FitOptions {
	return e.opts
}

// EstimateCenter fits the default estimator to raw. See Estimator.Center.
func EstimateCenter(raw []float64) (float64, bool) {
	return DefaultEstimator().Center(raw)
}

// Center returns the sub-pixel peak position of raw, or false when no
// meaningful peak can be fitted.
func (e *Estimator) Center(raw []float64) (float64, bool) {
	fit, ok := e.Fit(raw)
	if !ok {
		return 0, false
	}
	return fit.Center, true
}

// Fit runs the Gaussian fit over raw. Invalid samples count as zero. The
// result is reported only when the fit converged with a positive amplitude,
// a positive finite sigma and a center inside [0, len(raw)-1].
//
// A line narrower than a pixel is located by a three-sample parabola
// around the brightest sample. A line clipped by either end of the sensor,
// whose brightest sample is the first or last one, is reported at that end
// unless the fit lands inside the profile.
func (e *Estimator) Fit(raw []float64) (GaussianFit, bool) {
	y, _ := Sanitize(raw)
	n := len(y)
	if n < 3 {
		return GaussianFit{}, false
	}

	lo, hi := floats.Min(y), floats.Max(y)
	if hi <= 0 || hi == lo {
		return GaussianFit{}, false
	}

	guess := initialGuess(y, lo, hi)
	peak := floats.MaxIdx(y)
	atEdge := peak == 0 || peak == n-1
	clipped := guess
	clipped.Center = float64(peak)

	if atEdge {
		inner := 1
		if peak == n-1 {
			inner = n - 2
		}
		if y[inner] < lo+(hi-lo)/2 {
			return clipped, true
		}
	}

	fit, ok := e.refine(y, guess)
	if ok && fit.Sigma < pointSigma {
		fit.Center = peakVertex(y, peak)
	}
	if ok && fit.valid(n) {
		return fit, true
	}
	if atEdge {
		clipped.Iterations = fit.Iterations
		return clipped, true
	}
	return GaussianFit{}, false
}

// peakVertex returns the vertex of the parabola through the samples either
// side of k, or k itself on the boundary.
func peakVertex(y []float64, k int) float64 {
	if k <= 0 || k >= len(y)-1 {
		return float64(k)
	}
	a, b, c := y[k-1], y[k], y[k+1]
	den := a - 2*b + c
	if den >= 0 {
		return float64(k)
	}
	off := 0.5 * (a - c) / den
	return float64(k) + math.Max(-0.5, math.Min(0.5, off))
}

func (g GaussianFit) valid(n int) bool {
	for _, v := range []float64{g.Amplitude, g.Center, g.Sigma, g.Offset} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return g.Amplitude > 0 && g.Sigma > 0 && g.Center >= 0 && g.Center <= float64(n-1)
}

// initialGuess seeds the fit from the half-maximum region around the
// brightest sample: its baseline-weighted centroid and its width.
func initialGuess(y []float64, lo, hi float64) GaussianFit {
	peak := floats.MaxIdx(y)
	half := lo + (hi-lo)/2

	left, right := peak, peak
	for left > 0 && y[left-1] >= half {
		left--
	}
	for right < len(y)-1 && y[right+1] >= half {
		right++
	}

	var wsum, xsum float64
	for i := left; i <= right; i++ {
		w := y[i] - lo
		wsum += w
		xsum += w * float64(i)
	}
	center := float64(peak)
	if wsum > 0 {
		center = xsum / wsum
	}

	sigma := float64(right-left+1) / fwhmPerSigma
	if sigma < minInitialSigma {
		sigma = minInitialSigma
	}

	return GaussianFit{Amplitude: hi - lo, Center: center, Sigma: sigma, Offset: lo}
}

// refine runs Levenberg-Marquardt on the four Gaussian parameters, solving
// the damped normal equations with a Cholesky factorisation.
func (e *Estimator) refine(y []float64, p GaussianFit) (GaussianFit, bool) {
	n := len(y)
	jac := mat.NewDense(n, 4, nil)
	res := mat.NewVecDense(n, nil)
	var (
		jtj  mat.SymDense
		grad mat.VecDense
		step mat.VecDense
		chol mat.Cholesky
	)

	cost := sumSquares(y, p)
	lambda := 1e-3

	// residual level indistinguishable from rounding noise in the data
	noiseFloor := 1e-24 * (floats.Dot(y, y) + 1)

	for iter := 1; iter <= e.opts.MaxIterations; iter++ {
		p.Iterations = iter
		fillJacobian(jac, res, y, p)
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), res)

		aug := mat.NewSymDense(4, nil)
		accepted := false
		for !accepted {
			if lambda > maxDamping {
				// no direction reduces the cost any further: stationary point
				p.Residual = cost
				return p, true
			}
			aug.CopySym(&jtj)
			for i := 0; i < 4; i++ {
				d := jtj.At(i, i)
				if d < minCurvature {
					d = minCurvature
				}
				aug.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}
			if ok := chol.Factorize(aug); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&step, &grad); err != nil {
				lambda *= 10
				continue
			}

			trial := p
			trial.Amplitude += step.AtVec(0)
			trial.Center += step.AtVec(1)
			trial.Sigma += step.AtVec(2)
			trial.Offset += step.AtVec(3)
			if !(trial.Sigma > 0) || math.IsInf(trial.Sigma, 0) {
				lambda *= 10
				continue
			}

			trialCost := sumSquares(y, trial)
			if math.IsNaN(trialCost) || trialCost >= cost {
				lambda *= 10
				continue
			}

			accepted = true
			improvement := cost - trialCost
			p, cost = trial, trialCost
			lambda = math.Max(lambda/10, minDamping)

			if p.Sigma < pointSigma {
				// sub-pixel line: further steps only narrow sigma
				p.Residual = cost
				return p, true
			}

			if improvement <= e.opts.Tolerance*cost || cost <= noiseFloor || mat.Norm(&step, 2) <= e.opts.Tolerance {
				p.Residual = cost
				return p, true
			}
		}
	}

	// out of iterations without settling
	return p, false
}

// fillJacobian writes the partial derivatives of the model with respect to
// (amplitude, center, sigma, offset) into jac and y - model into res.
func fillJacobian(jac *mat.Dense, res *mat.VecDense, y []float64, p GaussianFit) {
	s2 := p.Sigma * p.Sigma
	for i, yi := range y {
		d := float64(i) - p.Center
		g := math.Exp(-d * d / (2 * s2))
		jac.Set(i, 0, g)
		jac.Set(i, 1, p.Amplitude*g*d/s2)
		jac.Set(i, 2, p.Amplitude*g*d*d/(s2*p.Sigma))
		jac.Set(i, 3, 1)
		res.SetVec(i, yi-(p.Amplitude*g+p.Offset))
	}
}

func sumSquares(y []float64, p GaussianFit) float64 {
	var sum float64
	for i, yi := range y {
		r := yi - p.at(float64(i))
		sum += r * r
	}
	return sum
}
