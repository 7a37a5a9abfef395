package deepgp

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dtrask/deepgp/kernel"
)

// FeatureBank evaluates the basis functions of one layer's decoupled
// sample: L random Fourier features approximating the layer's prior,
// concatenated with M canonical kernel evaluations against the inducing
// inputs. Resample redraws the random parameters in place, so every
// downstream shape stays fixed across redraws.
type FeatureBank struct {
	kern kernel.Stationary
	z    *mat.Dense // M×D inducing inputs, read-only
	l    int

	freq  *mat.Dense // L×D sampled frequencies
	phase []float64  // L sampled phases
	scale float64    // sqrt(2 σ² / L)

	rnd *rand.Rand
}

// NewFeatureBank builds a bank of numFeatures Fourier features plus one
// canonical feature per inducing input of layer. The layer's kernel must
// be stationary.
func NewFeatureBank(layer *GPLayer, numFeatures int, rnd *rand.Rand) (*FeatureBank, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrFeatureCount, numFeatures)
	}
	st, ok := layer.Kernel.(kernel.Stationary)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKernel, layer.Kernel)
	}
	_, d := layer.Z.Dims()
	f := &FeatureBank{
		kern:  st,
		z:     layer.Z,
		l:     numFeatures,
		freq:  mat.NewDense(numFeatures, d, nil),
		phase: make([]float64, numFeatures),
		scale: math.Sqrt(2 * st.Variance() / float64(numFeatures)),
		rnd:   rnd,
	}
	f.Resample()
	return f, nil
}

// NumFeatures returns the Fourier feature count L.
func (f *FeatureBank) NumFeatures() int { return f.l }

// Len returns the total feature count L+M.
func (f *FeatureBank) Len() int {
	m, _ := f.z.Dims()
	return f.l + m
}

// Resample redraws the frequencies from the kernel's spectral density and
// the phases from U[0, 2π], in place. L, M and all downstream shapes are
// unchanged.
func (f *FeatureBank) Resample() {
	uni := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: f.rnd}
	for i := 0; i < f.l; i++ {
		f.kern.SampleSpectral(f.freq.RawRowView(i), f.rnd)
		f.phase[i] = uni.Rand()
	}
}

// Evaluate computes the n×(L+M) feature matrix at the rows of x:
// the Fourier block followed by the canonical block K(Z, x)ᵀ. The result
// is stored in dst; if dst is nil, new storage is allocated.
func (f *FeatureBank) Evaluate(dst *mat.Dense, x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	m, zd := f.z.Dims()
	if d != zd {
		panic(badInputDim)
	}
	if dst == nil {
		dst = mat.NewDense(n, f.l+m, nil)
	} else if r, c := dst.Dims(); r != n || c != f.l+m {
		panic(badInputDim)
	}
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		for j := 0; j < f.l; j++ {
			dst.Set(i, j, f.scale*math.Cos(floats.Dot(f.freq.RawRowView(j), row)+f.phase[j]))
		}
		for j := 0; j < m; j++ {
			dst.Set(i, f.l+j, f.kern.Cov(f.z.RawRowView(j), row))
		}
	}
	return dst
}

// fourier computes only the n×L Fourier block at the rows of x. The
// weight sampler uses it to evaluate the prior's implied value at the
// inducing inputs.
func (f *FeatureBank) fourier(dst *mat.Dense, x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	if _, zd := f.z.Dims(); d != zd {
		panic(badInputDim)
	}
	if dst == nil {
		dst = mat.NewDense(n, f.l, nil)
	}
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		for j := 0; j < f.l; j++ {
			dst.Set(i, j, f.scale*math.Cos(floats.Dot(f.freq.RawRowView(j), row)+f.phase[j]))
		}
	}
	return dst
}
