package deepgp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fakeTrajectory implements TrajectoryFunction without being produced by a
// DecoupledTrajectorySampler.
type fakeTrajectory struct{}

func (fakeTrajectory) Eval(x Batch) (*mat.Dense, error) { return nil, nil }

func twoLayerModel() *DeepGP {
	hidden := testLayer([]float64{-1, 0, 1}, []float64{-0.8, 0.1, 0.9}, 0.1, false)
	hidden.Mean = IdentityMean{}
	out := testLayer([]float64{-1, 0, 1}, []float64{0.5, -0.3, 0.2}, 0.1, true)
	return &DeepGP{Layers: []Layer{hidden, out}}
}

func TestNewDecoupledTrajectorySamplerValidation(t *testing.T) {
	model := twoLayerModel()

	_, err := NewDecoupledTrajectorySampler(model, 0)
	assert.ErrorIs(t, err, ErrFeatureCount)

	_, err = NewDecoupledTrajectorySampler(model, 100, WithJitter(-1))
	assert.ErrorIs(t, err, ErrJitter)

	withLatent := &DeepGP{Layers: []Layer{
		testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false),
		&LatentVariableLayer{In: 1, Out: 1},
	}}
	_, err = NewDecoupledTrajectorySampler(withLatent, 100)
	assert.ErrorIs(t, err, ErrUnsupportedLayer)
}

func TestGetTrajectoryEndToEnd(t *testing.T) {
	// Single layer, D=1, three inducing points, q_mu = 0, q_sqrt = 0.1·I.
	layer := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	model := &DeepGP{Layers: []Layer{layer}}

	s, err := NewDecoupledTrajectorySampler(model, 200, WithSeed(31))
	require.NoError(t, err)

	traj, err := s.GetTrajectory()
	require.NoError(t, err)

	x := Batch{mat.NewDense(3, 1, []float64{-1, 0, 1})}
	out, err := traj.Eval(x)
	require.NoError(t, err)

	n, b := out.Dims()
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, b)
	for i := 0; i < 3; i++ {
		v := out.At(i, 0)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "output must be finite")
	}

	again, err := traj.Eval(x)
	require.NoError(t, err)
	assert.True(t, mat.Equal(out, again), "repeated evaluation without resample must be identical")
}

func TestTrajectorySeededDeterminism(t *testing.T) {
	x := Batch{mat.NewDense(4, 1, []float64{-1.5, -0.5, 0.5, 1.5})}

	var outs []*mat.Dense
	for i := 0; i < 2; i++ {
		s, err := NewDecoupledTrajectorySampler(twoLayerModel(), 100, WithSeed(99))
		require.NoError(t, err)
		traj, err := s.GetTrajectory()
		require.NoError(t, err)
		out, err := traj.Eval(x)
		require.NoError(t, err)
		outs = append(outs, out)
	}
	assert.True(t, mat.Equal(outs[0], outs[1]), "same seed must reproduce the same trajectory")
}

func TestResampleAndUpdateTrajectory(t *testing.T) {
	s, err := NewDecoupledTrajectorySampler(twoLayerModel(), 100, WithSeed(41))
	require.NoError(t, err)

	traj, err := s.GetTrajectory()
	require.NoError(t, err)

	x := Batch{mat.NewDense(4, 1, []float64{-1.5, -0.5, 0.5, 1.5}), mat.NewDense(4, 1, []float64{-1, 0, 1, 2})}
	before, err := traj.Eval(x)
	require.NoError(t, err)

	resampled, err := s.ResampleTrajectory(traj)
	require.NoError(t, err)
	assert.Same(t, traj, resampled, "resample must mutate in place, not replace")

	after, err := traj.Eval(x)
	require.NoError(t, err)
	an, ab := after.Dims()
	assert.Equal(t, 4, an)
	assert.Equal(t, 2, ab)
	assert.False(t, mat.Equal(before, after))

	updated, err := s.UpdateTrajectory(traj)
	require.NoError(t, err)
	assert.Same(t, traj, updated)

	final, err := traj.Eval(x)
	require.NoError(t, err)
	assert.False(t, mat.Equal(after, final))
}

func TestTrajectoryBatchSizeGuard(t *testing.T) {
	s, err := NewDecoupledTrajectorySampler(twoLayerModel(), 100, WithSeed(51))
	require.NoError(t, err)

	traj, err := s.GetTrajectory()
	require.NoError(t, err)

	x := mat.NewDense(2, 1, []float64{0, 1})
	_, err = traj.Eval(Batch{x})
	require.NoError(t, err)

	_, err = traj.Eval(Batch{x, x})
	assert.ErrorIs(t, err, ErrBatchSize)

	// A new trajectory accepts the new batch size.
	fresh, err := s.GetTrajectory()
	require.NoError(t, err)
	_, err = fresh.Eval(Batch{x, x})
	require.NoError(t, err)
}

func TestTrajectoryTypeGuard(t *testing.T) {
	s, err := NewDecoupledTrajectorySampler(twoLayerModel(), 100, WithSeed(61))
	require.NoError(t, err)

	_, err = s.UpdateTrajectory(fakeTrajectory{})
	assert.ErrorIs(t, err, ErrTrajectoryType)

	_, err = s.ResampleTrajectory(fakeTrajectory{})
	assert.ErrorIs(t, err, ErrTrajectoryType)
}
