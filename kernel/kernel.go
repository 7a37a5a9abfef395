// Package kernel provides covariance kernels for Gaussian process models.
// Stationary kernels additionally expose sampling from their spectral
// density, which random Fourier feature approximations require.
package kernel

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const badLength = "kernel: input length mismatch"

// Kernel is a positive semi-definite covariance function.
type Kernel interface {
	// Cov returns the covariance between the points x and y. Cov panics
	// if x and y have different lengths.
	Cov(x, y []float64) float64
	// Variance returns the signal variance of the kernel.
	Variance() float64
}

// Stationary is a kernel that depends only on the difference between its
// inputs and therefore has a spectral density by Bochner's theorem.
type Stationary interface {
	Kernel
	// SampleSpectral draws one frequency vector from the kernel's
	// normalized spectral density and stores it in dst.
	SampleSpectral(dst []float64, rnd *rand.Rand)
}

var (
	_ Stationary = SquaredExponential{}
	_ Stationary = Matern32{}
	_ Stationary = Matern52{}
	_ Kernel     = Linear{}
)

// SquaredExponential is the squared exponential (RBF) kernel
//
//	k(x, y) = σ² exp(-‖x-y‖² / (2 l²))
//
// with signal variance σ² and length scale l.
type SquaredExponential struct {
	Var    float64 // signal variance
	Length float64 // length scale
}

func (k SquaredExponential) Variance() float64 { return k.Var }

func (k SquaredExponential) Cov(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badLength)
	}
	r := floats.Distance(x, y, 2)
	return k.Var * math.Exp(-0.5*r*r/(k.Length*k.Length))
}

// SampleSpectral draws from N(0, l⁻²I), the spectral density of the
// squared exponential kernel.
func (k SquaredExponential) SampleSpectral(dst []float64, rnd *rand.Rand) {
	norm := distuv.Normal{Mu: 0, Sigma: 1 / k.Length, Src: rnd}
	for i := range dst {
		dst[i] = norm.Rand()
	}
}

// Matern32 is the Matérn kernel with smoothness ν = 3/2.
type Matern32 struct {
	Var    float64
	Length float64
}

func (k Matern32) Variance() float64 { return k.Var }

func (k Matern32) Cov(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badLength)
	}
	r := math.Sqrt(3) * floats.Distance(x, y, 2) / k.Length
	return k.Var * (1 + r) * math.Exp(-r)
}

func (k Matern32) SampleSpectral(dst []float64, rnd *rand.Rand) {
	maternSpectral(dst, 3, k.Length, rnd)
}

// Matern52 is the Matérn kernel with smoothness ν = 5/2.
type Matern52 struct {
	Var    float64
	Length float64
}

func (k Matern52) Variance() float64 { return k.Var }

func (k Matern52) Cov(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badLength)
	}
	r := math.Sqrt(5) * floats.Distance(x, y, 2) / k.Length
	return k.Var * (1 + r + r*r/3) * math.Exp(-r)
}

func (k Matern52) SampleSpectral(dst []float64, rnd *rand.Rand) {
	maternSpectral(dst, 5, k.Length, rnd)
}

// maternSpectral draws one frequency vector for a Matérn kernel with
// 2ν = nu degrees of freedom. The spectral density is a multivariate
// Student's t: a normal vector scaled by a shared chi-squared draw.
func maternSpectral(dst []float64, nu float64, length float64, rnd *rand.Rand) {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rnd}
	chi2 := distuv.ChiSquared{K: nu, Src: rnd}
	scale := math.Sqrt(nu/chi2.Rand()) / length
	for i := range dst {
		dst[i] = norm.Rand() * scale
	}
}

// Linear is the dot-product kernel k(x, y) = σ² xᵀy. It is not stationary
// and cannot be approximated with random Fourier features.
type Linear struct {
	Var float64
}

func (k Linear) Variance() float64 { return k.Var }

func (k Linear) Cov(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badLength)
	}
	return k.Var * floats.Dot(x, y)
}
