package deepgp

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// samplerState tracks the lazy initialization of a layer sampler.
type samplerState int

const (
	uninitialized samplerState = iota
	ready
)

// DecoupledLayerSampler draws and evaluates one layer's share of a
// decoupled trajectory. The first evaluation fixes the batch size for the
// sampler's lifetime, keeping the weight buffer's shape static; the cached
// weight draw makes repeated evaluations consistent until Resample or
// Update.
type DecoupledLayerSampler struct {
	layer    *GPLayer
	features *FeatureBank
	weights  weightSampler

	state samplerState
	batch int
	draw  []*mat.Dense // one (L+M)×P weight matrix per batch element
}

// NewDecoupledLayerSampler builds a sampler for a single layer. Only
// *GPLayer is supported.
func NewDecoupledLayerSampler(layer Layer, numFeatures int, jitter float64, rnd *rand.Rand) (*DecoupledLayerSampler, error) {
	gp, ok := layer.(*GPLayer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedLayer, layer)
	}
	if jitter < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrJitter, jitter)
	}
	if err := gp.Validate(); err != nil {
		return nil, err
	}
	features, err := NewFeatureBank(gp, numFeatures, rnd)
	if err != nil {
		return nil, err
	}
	return &DecoupledLayerSampler{
		layer:    gp,
		features: features,
		weights:  weightSampler{layer: gp, features: features, jitter: jitter, rnd: rnd},
	}, nil
}

// Eval evaluates the layer's current draw at x, returning one n×P output
// matrix per batch element. The first call records len(x) as the sampler's
// batch size; later calls with a different batch size return ErrBatchSize.
func (s *DecoupledLayerSampler) Eval(x Batch) (Batch, error) {
	n, d, err := x.dims()
	if err != nil {
		return nil, err
	}
	if d != s.layer.InputDim() {
		return nil, fmt.Errorf("%w: input has %d columns, layer consumes %d", ErrShapeMismatch, d, s.layer.InputDim())
	}
	if s.state == uninitialized {
		s.batch = len(x)
		if err := s.Resample(); err != nil {
			return nil, err
		}
		s.state = ready
	}
	if len(x) != s.batch {
		return nil, fmt.Errorf("%w: got %d, fixed at %d", ErrBatchSize, len(x), s.batch)
	}

	p := s.layer.OutputDim()
	phi := mat.NewDense(n, s.features.Len(), nil)
	out := make(Batch, len(x))
	for b, xb := range x {
		s.features.Evaluate(phi, xb)
		yb := mat.NewDense(n, p, nil)
		yb.Mul(phi, s.draw[b])
		yb.Add(yb, s.layer.meanFunc().Mean(xb, p))
		out[b] = yb
	}
	return out, nil
}

// Resample redraws the cached weights while keeping the current features.
// Before the first evaluation the batch size is unknown and Resample is a
// no-op; the first evaluation draws the initial weights.
func (s *DecoupledLayerSampler) Resample() error {
	if s.batch == 0 {
		return nil
	}
	draw, err := s.weights.sample(s.batch)
	if err != nil {
		return err
	}
	s.draw = draw
	return nil
}

// Update redraws the random-feature decomposition and then the weights,
// picking up any change to the layer's posterior parameters.
func (s *DecoupledLayerSampler) Update() error {
	s.features.Resample()
	return s.Resample()
}
