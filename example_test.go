package deepgp_test

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/dtrask/deepgp"
	"github.com/dtrask/deepgp/kernel"
)

func ExampleDecoupledTrajectorySampler() {
	qSqrt := mat.NewTriDense(3, mat.Lower, nil)
	for i := 0; i < 3; i++ {
		qSqrt.SetTri(i, i, 0.1)
	}
	layer := &deepgp.GPLayer{
		Kernel: kernel.SquaredExponential{Var: 1, Length: 1},
		Z:      mat.NewDense(3, 1, []float64{-1, 0, 1}),
		QMu:    mat.NewDense(3, 1, nil),
		QSqrt:  []*mat.TriDense{qSqrt},
	}
	model := &deepgp.DeepGP{Layers: []deepgp.Layer{layer}}

	sampler, err := deepgp.NewDecoupledTrajectorySampler(model, 500, deepgp.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}
	trajectory, err := sampler.GetTrajectory()
	if err != nil {
		log.Fatal(err)
	}

	// One consistent function draw, evaluated at three points.
	values, err := deepgp.EvalPoints(trajectory, mat.NewDense(3, 1, []float64{-1, 0, 1}))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(values))

	// A fresh draw from the same posterior, same shapes, new randomness.
	if _, err := sampler.ResampleTrajectory(trajectory); err != nil {
		log.Fatal(err)
	}
	// Output:
	// 3
}
