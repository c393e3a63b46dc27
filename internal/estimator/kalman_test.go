package estimator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstUpdateWithZeroHistory(t *testing.T) {
	k := New(Config{})

	// Unit-slope prior: predicted y = x, so the first residual is y - x.
	residual := k.Update(0.06, 0.061)
	assert.InDelta(t, 0.001, residual, 1e-12)

	// A single residual cannot produce a std; fallback of 1.0 applies.
	assert.Equal(t, 1.0, k.RollingStd())
	assert.InDelta(t, 0.001, k.ZScore(), 1e-12)
}

func TestConvergesToLinearRelation(t *testing.T) {
	k := New(Config{})

	// y = 0.5 + 2x exactly; the filter should learn both terms.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		x := 10 + rng.Float64()*5
		k.Update(x, 0.5+2*x)
	}

	alpha, beta := k.Params()
	assert.InDelta(t, 0.5, alpha, 0.05)
	assert.InDelta(t, 2.0, beta, 0.01)
	assert.InDelta(t, 0.0, k.LastResidual(), 1e-3)
}

func TestCovarianceStaysSymmetricAndDiagonalNonNegative(t *testing.T) {
	k := New(Config{})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		x := rng.Float64() * 100
		y := 3*x + rng.NormFloat64()
		k.Update(x, y)

		cov := k.Covariance()
		require.Equal(t, cov[0][1], cov[1][0], "covariance must stay symmetric")
		require.GreaterOrEqual(t, cov[0][0], 0.0, "diagonal must stay non-negative")
		require.GreaterOrEqual(t, cov[1][1], 0.0, "diagonal must stay non-negative")
	}
}

func TestZScoreReactsToSpreadShift(t *testing.T) {
	k := New(Config{})

	// Warm up on a stable relation with small noise so the rolling std is
	// tight, then shift the dependent price.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 300; i++ {
		k.Update(0.06, 0.06+rng.NormFloat64()*1e-6)
	}

	k.Update(0.06, 0.061)
	assert.Greater(t, k.ZScore(), 2.0, "a 1e-3 shift against 1e-6 noise must breach the threshold")
}

func TestResidualWindowEviction(t *testing.T) {
	k := New(Config{ResidualWindow: 5})
	for i := 0; i < 20; i++ {
		k.Update(float64(i), float64(2*i))
	}
	snap := k.Snapshot()
	assert.Len(t, snap.Residuals, 5)
}

func TestSnapshotRoundTripResumesIdentically(t *testing.T) {
	cfg := Config{ProcessNoise: 1e-5, ObservationNoise: 1e-3, ResidualWindow: 50}
	a := New(cfg)
	b := New(cfg)

	rng := rand.New(rand.NewSource(99))
	inputs := make([][2]float64, 500)
	for i := range inputs {
		x := 50 + rng.Float64()
		inputs[i] = [2]float64{x, 1.5*x + rng.NormFloat64()*0.01}
	}

	// Run `a` uninterrupted; run `b` half way, serialize, restore, resume.
	for _, in := range inputs[:250] {
		a.Update(in[0], in[1])
		b.Update(in[0], in[1])
	}

	blob, err := b.Snapshot().Marshal()
	require.NoError(t, err)
	snap, err := UnmarshalSnapshot(blob)
	require.NoError(t, err)
	restored, err := Restore(snap)
	require.NoError(t, err)

	for _, in := range inputs[250:] {
		a.Update(in[0], in[1])
		restored.Update(in[0], in[1])
	}

	assert.Equal(t, a.state, restored.state)
	assert.Equal(t, a.cov, restored.cov)
	assert.Equal(t, a.lastResidual, restored.lastResidual)
	assert.Equal(t, a.residuals.Values(), restored.residuals.Values())
	assert.Equal(t, a.ZScore(), restored.ZScore())
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	_, err := Restore(nil)
	assert.Error(t, err)

	_, err = Restore(&Snapshot{ResidualWindow: 0})
	assert.Error(t, err)

	_, err = Restore(&Snapshot{ResidualWindow: 2, Residuals: []float64{1, 2, 3}})
	assert.Error(t, err)
}

func TestInnovationFloorPreventsBlowup(t *testing.T) {
	// Collapse covariance and noise artificially and confirm the update
	// stays finite thanks to the innovation floor.
	k := New(Config{})
	k.cov = [2][2]float64{}
	k.q = 0
	k.r = 0
	residual := k.Update(1.0, 5.0)
	assert.False(t, math.IsNaN(residual) || math.IsInf(residual, 0))
	alpha, beta := k.Params()
	assert.False(t, math.IsNaN(alpha) || math.IsNaN(beta))
}
