package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// linearModel is ordinary least squares with an intercept term, fitted in
// closed form with a small ridge penalty so near-collinear feature columns
// (constant presence flags, duplicated calendar terms) stay solvable.
type linearModel struct {
	weights   []float64
	intercept float64
}

const ridgeLambda = 1e-8

func fitLinear(x [][]float64, y []float64) (*linearModel, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	p := len(x[0]) + 1 // intercept column first

	design := mat.NewDense(n, p, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	target := mat.NewVecDense(n, append([]float64(nil), y...))

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += ridgeLambda
			}
			sym.SetSym(i, j, v)
		}
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), target)

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("normal equations are not positive definite")
	}

	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	m := &linearModel{intercept: coef.AtVec(0)}
	for j := 1; j < p; j++ {
		m.weights = append(m.weights, coef.AtVec(j))
	}
	return m, nil
}

func (m *linearModel) Predict(features []float64) float64 {
	v := m.intercept
	for j, w := range m.weights {
		v += w * features[j]
	}
	return v
}

func (m *linearModel) Forecast(steps int) ([]float64, bool) {
	return nil, false
}
