// Package deepgp implements posterior trajectory sampling for deep
// (multi-layer) sparse variational Gaussian process models.
//
// A trajectory is a single consistent function draw from the model
// posterior: evaluating it at many points gives mutually consistent
// samples from one underlying function, unlike independent pointwise
// draws. Trajectories are produced with decoupled sampling (Matheron's
// rule): each layer's draw is a random Fourier approximation of the prior
// plus an exact correction solved from the inducing-point constraints.
// Trajectories are resampled and updated in place, so the weight and
// feature buffers keep fixed shapes and callers holding a reference
// observe each new draw without re-registration.
package deepgp
