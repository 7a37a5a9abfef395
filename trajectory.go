package deepgp

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// TrajectoryFunction is a single consistent draw from a model's posterior,
// evaluable at many points with mutual consistency.
type TrajectoryFunction interface {
	// Eval evaluates the draw at the points in x, returning an n×b matrix
	// with one column per batch element.
	Eval(x Batch) (*mat.Dense, error)
}

// EvalPoints evaluates trajectory at the rows of x with a batch size of
// one, returning the n outputs as a slice.
func EvalPoints(trajectory TrajectoryFunction, x *mat.Dense) ([]float64, error) {
	out, err := trajectory.Eval(Batch{x})
	if err != nil {
		return nil, err
	}
	n, _ := out.Dims()
	dst := make([]float64, n)
	mat.Col(dst, 0, out)
	return dst, nil
}

// Trajectory is a decoupled trajectory: an ordered chain of layer samplers
// whose composed output is restricted to the first output channel. A
// Trajectory exclusively owns its layer samplers and is mutated in place
// by Update and Resample, so callers holding a reference observe each new
// draw without re-registration.
type Trajectory struct {
	layers []*DecoupledLayerSampler
}

// Eval threads x through each layer sampler in order and returns the final
// layer's first output channel as an n×b matrix.
func (t *Trajectory) Eval(x Batch) (*mat.Dense, error) {
	cur := x
	var err error
	for _, layer := range t.layers {
		cur, err = layer.Eval(cur)
		if err != nil {
			return nil, err
		}
	}
	n, _ := cur[0].Dims()
	out := mat.NewDense(n, len(cur), nil)
	for b, yb := range cur {
		for i := 0; i < n; i++ {
			out.Set(i, b, yb.At(i, 0))
		}
	}
	return out, nil
}

// Resample redraws every layer's weights, keeping the current feature
// decompositions. Cheap; use it for a fresh draw between rounds when the
// model has not changed.
func (t *Trajectory) Resample() error {
	for _, layer := range t.layers {
		if err := layer.Resample(); err != nil {
			return err
		}
	}
	return nil
}

// Update redraws every layer's feature decomposition and weights. Use it
// after the model has been refit.
func (t *Trajectory) Update() error {
	for _, layer := range t.layers {
		if err := layer.Update(); err != nil {
			return err
		}
	}
	return nil
}

// DecoupledTrajectorySampler builds and manages decoupled trajectories for
// a deep GP model. A sampler instance assumes single-threaded use; build
// one sampler per concurrent consumer.
type DecoupledTrajectorySampler struct {
	model       *DeepGP
	numFeatures int
	jitter      float64
	rnd         *rand.Rand
	log         *zap.Logger
}

// NewDecoupledTrajectorySampler validates model and returns a sampler that
// draws trajectories with numFeatures Fourier features per layer. Every
// layer must be a *GPLayer; validation happens here, before any sampling
// cost is incurred.
func NewDecoupledTrajectorySampler(model *DeepGP, numFeatures int, opts ...Option) (*DecoupledTrajectorySampler, error) {
	cfg := newConfig(opts)
	if numFeatures <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrFeatureCount, numFeatures)
	}
	if cfg.jitter < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrJitter, cfg.jitter)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	for i, layer := range model.Layers {
		if _, ok := layer.(*GPLayer); !ok {
			return nil, fmt.Errorf("%w: layer %d is %T", ErrUnsupportedLayer, i, layer)
		}
	}
	log := cfg.log.Named("decoupled_sampler")
	log.Debug("validated model",
		zap.Int("layers", len(model.Layers)),
		zap.Int("num_features", numFeatures),
		zap.Float64("jitter", cfg.jitter),
	)
	return &DecoupledTrajectorySampler{
		model:       model,
		numFeatures: numFeatures,
		jitter:      cfg.jitter,
		rnd:         rand.New(cfg.src),
		log:         log,
	}, nil
}

// GetTrajectory builds a new trajectory from the current model state. Each
// trajectory owns its own layer samplers; request a new trajectory when
// the evaluation batch size must change.
func (s *DecoupledTrajectorySampler) GetTrajectory() (TrajectoryFunction, error) {
	layers := make([]*DecoupledLayerSampler, len(s.model.Layers))
	for i, layer := range s.model.Layers {
		ls, err := NewDecoupledLayerSampler(layer, s.numFeatures, s.jitter, s.rnd)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = ls
	}
	s.log.Debug("built trajectory", zap.Int("layers", len(layers)))
	return &Trajectory{layers: layers}, nil
}

// UpdateTrajectory refreshes trajectory's feature decompositions and
// weights after a model refit, mutating it in place, and returns the same
// trajectory so existing references remain valid.
func (s *DecoupledTrajectorySampler) UpdateTrajectory(trajectory TrajectoryFunction) (TrajectoryFunction, error) {
	t, ok := trajectory.(*Trajectory)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrTrajectoryType, trajectory)
	}
	if err := t.Update(); err != nil {
		return nil, err
	}
	s.log.Debug("updated trajectory")
	return t, nil
}

// ResampleTrajectory redraws trajectory's weights in place and returns the
// same trajectory.
func (s *DecoupledTrajectorySampler) ResampleTrajectory(trajectory TrajectoryFunction) (TrajectoryFunction, error) {
	t, ok := trajectory.(*Trajectory)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrTrajectoryType, trajectory)
	}
	if err := t.Resample(); err != nil {
		return nil, err
	}
	s.log.Debug("resampled trajectory")
	return t, nil
}
