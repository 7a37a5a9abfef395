package deepgp

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ReparamSampler approximates samples from a deep GP's predictive
// distribution with the reparameterization trick. One standard-normal
// noise matrix per layer is drawn on the first call and frozen, so
// repeated calls on the same instance and input reproduce identical
// samples, while distinct instances diverge. There is no feature
// decomposition and no Matheron correction: each layer propagates its
// marginal mean and variance under the frozen noise.
type ReparamSampler struct {
	model      *DeepGP
	sampleSize int

	eps         []*mat.Dense // per layer, sampleSize×P, filled on first use
	initialized bool

	rnd *rand.Rand
	log *zap.Logger
}

// NewReparamSampler builds a sampler producing sampleSize samples per
// batch of query points. Every model layer must be a *GPLayer.
func NewReparamSampler(model *DeepGP, sampleSize int, opts ...Option) (*ReparamSampler, error) {
	cfg := newConfig(opts)
	if sampleSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSampleSize, sampleSize)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	for i, layer := range model.Layers {
		if _, ok := layer.(*GPLayer); !ok {
			return nil, fmt.Errorf("%w: layer %d is %T", ErrUnsupportedLayer, i, layer)
		}
	}
	return &ReparamSampler{
		model:      model,
		sampleSize: sampleSize,
		eps:        make([]*mat.Dense, len(model.Layers)),
		rnd:        rand.New(cfg.src),
		log:        cfg.log.Named("reparam_sampler"),
	}, nil
}

// Sample returns sampleSize samples of the model at the rows of at, as a
// Batch of sampleSize n×P matrices.
func (s *ReparamSampler) Sample(at *mat.Dense, jitter float64) (Batch, error) {
	if at == nil {
		panic(nilInput)
	}
	if jitter < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrJitter, jitter)
	}
	n, d := at.Dims()
	if d != s.model.Layers[0].InputDim() {
		return nil, fmt.Errorf("%w: input has %d columns, model consumes %d", ErrShapeMismatch, d, s.model.Layers[0].InputDim())
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: s.rnd}
	samples := make(Batch, s.sampleSize)
	for b := range samples {
		xb := mat.NewDense(n, d, nil)
		xb.Copy(at)
		samples[b] = xb
	}
	for li, layer := range s.model.Layers {
		gp := layer.(*GPLayer)
		p := gp.OutputDim()
		if !s.initialized {
			eps := mat.NewDense(s.sampleSize, p, nil)
			fillNormal(eps, norm)
			s.eps[li] = eps
		}
		for b := range samples {
			mean, variance, err := gp.Predict(samples[b], jitter)
			if err != nil {
				return nil, err
			}
			yb := mat.NewDense(n, p, nil)
			for i := 0; i < n; i++ {
				for j := 0; j < p; j++ {
					yb.Set(i, j, mean.At(i, j)+math.Sqrt(variance.At(i, j))*s.eps[li].At(b, j))
				}
			}
			samples[b] = yb
		}
	}
	if !s.initialized {
		s.initialized = true
		s.log.Debug("froze layer noise",
			zap.Int("layers", len(s.model.Layers)),
			zap.Int("sample_size", s.sampleSize),
		)
	}
	return samples, nil
}
