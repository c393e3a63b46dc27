// Package estimator tracks a time-varying hedge relationship between two
// price series with a recursive least-squares (Kalman) filter.
package estimator

import (
	"pair_trader/pkg/ringbuffer"
)

// Defaults match the reference parameters for crypto cross spreads.
const (
	DefaultProcessNoise     = 1e-5
	DefaultObservationNoise = 1e-3
	DefaultResidualWindow   = 200

	// innovationFloor guards the gain division when covariance collapses
	innovationFloor = 1e-8
)

// Config holds estimator tuning parameters
type Config struct {
	ProcessNoise     float64
	ObservationNoise float64
	ResidualWindow   int
}

// KalmanSpread models the dependent price as a noisy linear function of the
// independent price with time-varying intercept and slope. The residual of
// each observation is the spread; a bounded history of residuals provides a
// rolling standard deviation for z-score normalization.
type KalmanSpread struct {
	state [2]float64    // intercept, slope
	cov   [2][2]float64 // covariance, kept symmetric
	q     float64       // process noise
	r     float64       // observation noise

	lastResidual float64
	residuals    *ringbuffer.Buffer
}

// New creates an estimator with identity covariance and a unit slope prior
func New(cfg Config) *KalmanSpread {
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = DefaultProcessNoise
	}
	if cfg.ObservationNoise <= 0 {
		cfg.ObservationNoise = DefaultObservationNoise
	}
	if cfg.ResidualWindow <= 0 {
		cfg.ResidualWindow = DefaultResidualWindow
	}

	return &KalmanSpread{
		state:     [2]float64{0, 1},
		cov:       [2][2]float64{{1, 0}, {0, 1}},
		q:         cfg.ProcessNoise,
		r:         cfg.ObservationNoise,
		residuals: ringbuffer.New(cfg.ResidualWindow),
	}
}

// Update ingests one (independent, dependent) price observation and returns
// the residual spread. Safe to call with zero history; the first residual is
// measured against the unit-slope prior.
func (k *KalmanSpread) Update(x, y float64) float64 {
	phi := [2]float64{1, x}
	predicted := k.state[0] + k.state[1]*x

	// P φ
	pPhi := [2]float64{
		k.cov[0][0]*phi[0] + k.cov[0][1]*phi[1],
		k.cov[1][0]*phi[0] + k.cov[1][1]*phi[1],
	}

	// Innovation variance, floored for stability
	s := phi[0]*pPhi[0] + phi[1]*pPhi[1] + k.r
	if s < innovationFloor {
		s = innovationFloor
	}

	gain := [2]float64{pPhi[0] / s, pPhi[1] / s}

	residual := y - predicted
	k.state[0] += gain[0] * residual
	k.state[1] += gain[1] * residual

	// P = P − (K φᵀ) P + Q·I, then symmetrized
	var kp [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			kp[i][j] = gain[i] * (phi[0]*k.cov[0][j] + phi[1]*k.cov[1][j])
		}
	}
	var next [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			next[i][j] = k.cov[i][j] - kp[i][j]
			if i == j {
				next[i][j] += k.q
			}
		}
	}
	k.cov[0][0] = next[0][0]
	k.cov[1][1] = next[1][1]
	off := 0.5 * (next[0][1] + next[1][0])
	k.cov[0][1] = off
	k.cov[1][0] = off

	k.lastResidual = residual
	k.residuals.Push(residual)

	return residual
}

// ZScore returns the last residual normalized by the rolling std
func (k *KalmanSpread) ZScore() float64 {
	return k.lastResidual / k.RollingStd()
}

// RollingStd returns the standard deviation of the residual history.
// Degenerate histories (empty, single sample, or identical values) report
// 1.0 so the z-score stays bounded rather than dividing by zero.
func (k *KalmanSpread) RollingStd() float64 {
	std := k.residuals.StdDev()
	if std == 0 {
		return 1.0
	}
	return std
}

// ResidualStd returns the raw residual standard deviation without the
// degenerate-history fallback. Reported as the volatility feature.
func (k *KalmanSpread) ResidualStd() float64 {
	return k.residuals.StdDev()
}

// LastResidual returns the most recent spread
func (k *KalmanSpread) LastResidual() float64 {
	return k.lastResidual
}

// Params returns the current intercept and hedge-ratio slope
func (k *KalmanSpread) Params() (alpha, beta float64) {
	return k.state[0], k.state[1]
}

// Covariance returns a copy of the covariance matrix
func (k *KalmanSpread) Covariance() [2][2]float64 {
	return k.cov
}
