package deepgp

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// weightSampler draws joint weights for the Fourier and canonical features
// of one layer, so that features·weights is a draw from the layer's
// posterior by Matheron's rule: an approximate prior draw plus an exact
// correction solved from the inducing-point constraints.
type weightSampler struct {
	layer    *GPLayer
	features *FeatureBank
	jitter   float64
	rnd      *rand.Rand
}

// sample draws one (L+M)×P weight matrix per batch element. The Gram
// matrix and its Cholesky factor are recomputed on every call rather than
// cached, so a draw after a model refit always sees current parameters.
func (w weightSampler) sample(batch int) ([]*mat.Dense, error) {
	m := w.layer.NumInducing()
	p := w.layer.OutputDim()
	l := w.features.NumFeatures()

	kmm := gram(w.layer.Kernel, w.layer.Z, w.jitter)
	var chol mat.Cholesky
	if !chol.Factorize(kmm) {
		return nil, ErrSingular
	}
	var lmm *mat.TriDense
	if w.layer.Whiten {
		lmm = mat.NewTriDense(m, mat.Lower, nil)
		chol.LTo(lmm)
	}

	// Fourier features at the inducing inputs, shared across the batch.
	phiZ := w.features.fourier(nil, w.layer.Z)

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: w.rnd}
	eps := mat.NewDense(m, p, nil)
	ucol := mat.NewVecDense(m, nil)
	weights := make([]*mat.Dense, batch)
	for b := range weights {
		// Prior weights for the Fourier block.
		prior := mat.NewDense(l, p, nil)
		fillNormal(prior, norm)

		// u ~ N(q_mu, q_sqrt q_sqrtᵀ), one column per output dimension.
		fillNormal(eps, norm)
		u := mat.NewDense(m, p, nil)
		for j := 0; j < p; j++ {
			ucol.MulVec(w.layer.QSqrt[j], eps.ColView(j))
			for i := 0; i < m; i++ {
				u.Set(i, j, w.layer.QMu.At(i, j)+ucol.AtVec(i))
			}
		}
		if w.layer.Whiten {
			// The model stores a whitened posterior; undo it before
			// comparing against the prior evaluated at Z.
			uw := mat.NewDense(m, p, nil)
			uw.Mul(lmm, u)
			u = uw
		}

		// The prior's implied value at the inducing inputs.
		priorZ := mat.NewDense(m, p, nil)
		priorZ.Mul(phiZ, prior)

		// Matheron correction: solve Kmm v = u - Φ(Z)·prior.
		diff := mat.NewDense(m, p, nil)
		diff.Sub(u, priorZ)
		v := mat.NewDense(m, p, nil)
		if err := chol.SolveTo(v, diff); err != nil {
			return nil, ErrSingular
		}

		wb := mat.NewDense(l+m, p, nil)
		wb.Slice(0, l, 0, p).(*mat.Dense).Copy(prior)
		wb.Slice(l, l+m, 0, p).(*mat.Dense).Copy(v)
		weights[b] = wb
	}
	return weights, nil
}

func fillNormal(dst *mat.Dense, norm distuv.Normal) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		row := dst.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = norm.Rand()
		}
	}
}
