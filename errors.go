package deepgp

import "errors"

// Sentinel errors for trajectory sampling. All are returned at the point
// of detection, at construction or first call, and none are retried.
var (
	// ErrUnsupportedLayer indicates a model layer kind the decoupled
	// algorithm is not defined for.
	ErrUnsupportedLayer = errors.New("deepgp: layer kind not supported by the decoupled sampler")

	// ErrUnsupportedKernel indicates a kernel without a stationary
	// spectral density, which the random Fourier decomposition requires.
	ErrUnsupportedKernel = errors.New("deepgp: kernel has no stationary spectral density")

	// ErrFeatureCount indicates a non-positive random feature count.
	ErrFeatureCount = errors.New("deepgp: feature count must be positive")

	// ErrJitter indicates a negative diagonal jitter.
	ErrJitter = errors.New("deepgp: jitter must be non-negative")

	// ErrSampleSize indicates a non-positive reparameterization sample size.
	ErrSampleSize = errors.New("deepgp: sample size must be positive")

	// ErrBatchSize indicates an evaluation batch size different from the
	// one fixed at the trajectory's first evaluation. Request a new
	// trajectory to change the batch size.
	ErrBatchSize = errors.New("deepgp: batch size differs from the one fixed at first evaluation; request a new trajectory for a new batch size")

	// ErrShapeMismatch indicates inconsistent matrix dimensions.
	ErrShapeMismatch = errors.New("deepgp: dimension mismatch")

	// ErrTrajectoryType indicates a trajectory passed to a sampler whose
	// composition type did not produce it.
	ErrTrajectoryType = errors.New("deepgp: trajectory was not produced by this sampler")

	// ErrSingular indicates a Gram matrix that could not be factorized.
	// Increase the jitter or inspect the inducing points.
	ErrSingular = errors.New("deepgp: gram matrix singular or near singular")
)
