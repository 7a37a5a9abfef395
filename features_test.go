package deepgp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/dtrask/deepgp/kernel"
)

func TestNewFeatureBankErrors(t *testing.T) {
	layer := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	rnd := rand.New(rand.NewSource(1))

	_, err := NewFeatureBank(layer, 0, rnd)
	assert.ErrorIs(t, err, ErrFeatureCount)

	_, err = NewFeatureBank(layer, -5, rnd)
	assert.ErrorIs(t, err, ErrFeatureCount)

	linear := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	linear.Kernel = kernel.Linear{Var: 1}
	_, err = NewFeatureBank(linear, 100, rnd)
	assert.ErrorIs(t, err, ErrUnsupportedKernel)
}

func TestFeatureBankEvaluate(t *testing.T) {
	layer := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	rnd := rand.New(rand.NewSource(2))

	const l = 50
	bank, err := NewFeatureBank(layer, l, rnd)
	require.NoError(t, err)
	assert.Equal(t, l, bank.NumFeatures())
	assert.Equal(t, l+3, bank.Len())

	x := mat.NewDense(4, 1, []float64{-1.5, -0.2, 0.4, 2.0})
	phi := bank.Evaluate(nil, x)
	n, c := phi.Dims()
	assert.Equal(t, 4, n)
	assert.Equal(t, l+3, c)

	// The canonical block is K(Z, x)ᵀ exactly.
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			want := layer.Kernel.Cov(layer.Z.RawRowView(j), x.RawRowView(i))
			assert.InDelta(t, want, phi.At(i, l+j), 1e-14)
		}
	}

	// Evaluation is deterministic between resamples.
	again := bank.Evaluate(nil, x)
	assert.True(t, mat.Equal(phi, again))
}

func TestFeatureBankResample(t *testing.T) {
	layer := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	rnd := rand.New(rand.NewSource(3))

	bank, err := NewFeatureBank(layer, 20, rnd)
	require.NoError(t, err)

	x := mat.NewDense(2, 1, []float64{0.1, 0.7})
	before := bank.Evaluate(nil, x)

	bank.Resample()
	after := bank.Evaluate(nil, x)

	// Same shape, fresh randomness in the Fourier block, identical
	// canonical block.
	br, bc := before.Dims()
	ar, ac := after.Dims()
	assert.Equal(t, br, ar)
	assert.Equal(t, bc, ac)
	assert.False(t, mat.Equal(before, after))
	for i := 0; i < 2; i++ {
		for j := 20; j < 23; j++ {
			assert.Equal(t, before.At(i, j), after.At(i, j))
		}
	}
}

func TestFourierApproximatesKernel(t *testing.T) {
	// φ(x)ᵀφ(y) converges to k(x, y) as the feature count grows.
	layer := testLayer([]float64{-1, 0, 1}, []float64{0, 0, 0}, 0.1, false)
	rnd := rand.New(rand.NewSource(4))

	const l = 5000
	bank, err := NewFeatureBank(layer, l, rnd)
	require.NoError(t, err)

	x := mat.NewDense(4, 1, []float64{-1.2, -0.3, 0.5, 1.4})
	phi := bank.fourier(nil, x)

	rowI := make([]float64, l)
	rowJ := make([]float64, l)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			mat.Row(rowI, i, phi)
			mat.Row(rowJ, j, phi)
			want := layer.Kernel.Cov(x.RawRowView(i), x.RawRowView(j))
			assert.InDelta(t, want, floats.Dot(rowI, rowJ), 0.08)
		}
	}
}
