package deepgp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/dtrask/deepgp/kernel"
)

// DefaultJitter is added to the diagonal of Gram matrices before
// factorization unless overridden with WithJitter.
const DefaultJitter = 1e-6

const (
	badInputDim = "deepgp: input dimension mismatch"
	nilKernel   = "deepgp: nil kernel"
	nilInput    = "deepgp: nil input"
)

// Layer is one layer of a deep Gaussian process model. The sampling
// machinery in this package supports only *GPLayer; other kinds are
// recognized so that samplers can reject them at construction time,
// before any sampling cost is incurred.
type Layer interface {
	// InputDim returns the trailing dimension D of the layer's inputs.
	InputDim() int
	// OutputDim returns the number of output dimensions P.
	OutputDim() int
}

// GPLayer is a sparse variational Gaussian process layer. Its fields are
// owned by the external model and read, never written, by the samplers.
type GPLayer struct {
	Kernel kernel.Kernel

	// Z holds the M inducing inputs, one per row.
	Z *mat.Dense

	// QMu is the M×P variational mean over the inducing outputs.
	QMu *mat.Dense

	// QSqrt holds one lower-triangular M×M covariance factor per output
	// dimension.
	QSqrt []*mat.TriDense

	// Whiten indicates the variational distribution is parameterized
	// through the prior's Cholesky factor.
	Whiten bool

	// Mean is the layer's mean function. A nil Mean is treated as ZeroMean.
	Mean MeanFunction
}

func (l *GPLayer) InputDim() int {
	_, d := l.Z.Dims()
	return d
}

func (l *GPLayer) OutputDim() int {
	_, p := l.QMu.Dims()
	return p
}

// NumInducing returns the number of inducing inputs M.
func (l *GPLayer) NumInducing() int {
	m, _ := l.Z.Dims()
	return m
}

func (l *GPLayer) meanFunc() MeanFunction {
	if l.Mean != nil {
		return l.Mean
	}
	return ZeroMean{}
}

// Validate checks the internal shape invariants of the layer.
func (l *GPLayer) Validate() error {
	if l.Kernel == nil {
		panic(nilKernel)
	}
	if l.Z == nil || l.QMu == nil {
		panic(nilInput)
	}
	m, _ := l.Z.Dims()
	qm, p := l.QMu.Dims()
	if qm != m {
		return fmt.Errorf("%w: %d inducing inputs but q_mu has %d rows", ErrShapeMismatch, m, qm)
	}
	if len(l.QSqrt) != p {
		return fmt.Errorf("%w: %d q_sqrt factors for %d output dimensions", ErrShapeMismatch, len(l.QSqrt), p)
	}
	for i, s := range l.QSqrt {
		n, kind := s.Triangle()
		if n != m {
			return fmt.Errorf("%w: q_sqrt[%d] is %d×%d, want %d×%d", ErrShapeMismatch, i, n, n, m, m)
		}
		if kind != mat.Lower {
			return fmt.Errorf("%w: q_sqrt[%d] is not lower triangular", ErrShapeMismatch, i)
		}
	}
	return nil
}

// Predict returns the marginal posterior mean and variance of the layer at
// the rows of x, each n×P. The Gram matrix and its Cholesky factor are
// computed fresh on every call.
func (l *GPLayer) Predict(x mat.Matrix, jitter float64) (mean, variance *mat.Dense, err error) {
	if jitter < 0 {
		return nil, nil, fmt.Errorf("%w: got %v", ErrJitter, jitter)
	}
	n, d := x.Dims()
	if d != l.InputDim() {
		return nil, nil, fmt.Errorf("%w: input has %d columns, inducing inputs have %d", ErrShapeMismatch, d, l.InputDim())
	}
	m := l.NumInducing()
	p := l.OutputDim()

	kmm := gram(l.Kernel, l.Z, jitter)
	var chol mat.Cholesky
	if !chol.Factorize(kmm) {
		return nil, nil, ErrSingular
	}
	kmn := crossCov(l.Kernel, l.Z, x)

	// a is Lmm⁻¹ Kmn when whitened, Kmm⁻¹ Kmn otherwise.
	a := mat.NewDense(m, n, nil)
	if l.Whiten {
		lmm := mat.NewTriDense(m, mat.Lower, nil)
		chol.LTo(lmm)
		if err := a.Solve(lmm, kmn); err != nil {
			return nil, nil, ErrSingular
		}
	} else {
		if err := chol.SolveTo(a, kmn); err != nil {
			return nil, nil, ErrSingular
		}
	}

	mean = mat.NewDense(n, p, nil)
	mean.Mul(a.T(), l.QMu)
	mean.Add(mean, l.meanFunc().Mean(x, p))

	// The marginal variance per output dimension j is
	//	k(x,x) - diag(Kmnᵀ Kmm⁻¹ Kmn) + diag(aᵀ S_j a)
	// with S_j the variational covariance for that dimension.
	variance = mat.NewDense(n, p, nil)
	sa := mat.NewDense(m, n, nil)
	acol := make([]float64, m)
	kcol := make([]float64, m)
	xi := make([]float64, d)
	for j := 0; j < p; j++ {
		sa.Mul(l.QSqrt[j].T(), a)
		for i := 0; i < n; i++ {
			mat.Row(xi, i, x)
			v := l.Kernel.Cov(xi, xi)
			mat.Col(acol, i, a)
			if l.Whiten {
				v -= floats.Dot(acol, acol)
			} else {
				mat.Col(kcol, i, kmn)
				v -= floats.Dot(kcol, acol)
			}
			mat.Col(acol, i, sa)
			v += floats.Dot(acol, acol)
			if v < 0 {
				v = 0
			}
			variance.Set(i, j, v)
		}
	}
	return mean, variance, nil
}

// LatentVariableLayer augments its inputs with draws from a latent prior.
// The decoupled algorithm is not defined for it; it exists so that models
// containing one are rejected at sampler construction.
type LatentVariableLayer struct {
	In, Out int
}

func (l *LatentVariableLayer) InputDim() int  { return l.In }
func (l *LatentVariableLayer) OutputDim() int { return l.Out }

// DeepGP is an ordered stack of layers, each consuming the output of the
// previous one. The samplers read its layers and never modify them.
type DeepGP struct {
	Layers []Layer
}

// Validate checks each layer and the dimension chain between consecutive
// layers.
func (g *DeepGP) Validate() error {
	if len(g.Layers) == 0 {
		return fmt.Errorf("%w: model has no layers", ErrShapeMismatch)
	}
	for i, layer := range g.Layers {
		if gp, ok := layer.(*GPLayer); ok {
			if err := gp.Validate(); err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
		}
		if i > 0 {
			prev := g.Layers[i-1]
			if layer.InputDim() != prev.OutputDim() {
				return fmt.Errorf("%w: layer %d consumes %d dimensions but layer %d produces %d",
					ErrShapeMismatch, i, layer.InputDim(), i-1, prev.OutputDim())
			}
		}
	}
	return nil
}

// MeanFunction is a deterministic mean added to a layer's output.
type MeanFunction interface {
	// Mean evaluates the mean at the n rows of x, returning an n×p matrix.
	Mean(x mat.Matrix, p int) *mat.Dense
}

// ZeroMean is the zero mean function, the usual choice for a final layer.
type ZeroMean struct{}

func (ZeroMean) Mean(x mat.Matrix, p int) *mat.Dense {
	n, _ := x.Dims()
	return mat.NewDense(n, p, nil)
}

// IdentityMean passes the input through unchanged, so the layer's GP
// models a residual. The input dimension must equal p.
type IdentityMean struct{}

func (IdentityMean) Mean(x mat.Matrix, p int) *mat.Dense {
	n, d := x.Dims()
	if d != p {
		panic(badInputDim)
	}
	dst := mat.NewDense(n, p, nil)
	dst.Copy(x)
	return dst
}

// Batch is a stack of equally sized matrices, one per parallel trajectory
// sample. A Batch of length b whose matrices are n×d plays the role of an
// [n, b, d] tensor with the batch axis unstacked, keeping the batch and
// evaluation-point axes leading so the dense algebra vectorizes over them.
type Batch []*mat.Dense

func (b Batch) dims() (n, d int, err error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	n, d = b[0].Dims()
	for _, x := range b[1:] {
		ni, di := x.Dims()
		if ni != n || di != d {
			return 0, 0, fmt.Errorf("%w: ragged batch", ErrShapeMismatch)
		}
	}
	return n, d, nil
}

// gram computes K(Z, Z) with jitter added to the diagonal.
func gram(k kernel.Kernel, z *mat.Dense, jitter float64) *mat.SymDense {
	m, _ := z.Dims()
	s := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			v := k.Cov(z.RawRowView(i), z.RawRowView(j))
			if i == j {
				v += jitter
			}
			s.SetSym(i, j, v)
		}
	}
	return s
}

// crossCov computes the m×n covariance matrix K(Z, X).
func crossCov(k kernel.Kernel, z *mat.Dense, x mat.Matrix) *mat.Dense {
	m, _ := z.Dims()
	n, d := x.Dims()
	dst := mat.NewDense(m, n, nil)
	row := make([]float64, d)
	for j := 0; j < n; j++ {
		mat.Row(row, j, x)
		for i := 0; i < m; i++ {
			dst.Set(i, j, k.Cov(z.RawRowView(i), row))
		}
	}
	return dst
}
