package training

import (
	"fmt"
)

// boostedModel is a gradient-boosted ensemble: shallow trees fitted
// sequentially on the residuals of the running prediction.
type boostedModel struct {
	baseline     float64
	learningRate float64
	trees        []*regressionTree
}

type boostingParams struct {
	nTrees       int
	maxDepth     int
	minLeafSize  int
	learningRate float64
}

func defaultBoostingParams() boostingParams {
	return boostingParams{nTrees: 100, maxDepth: 3, minLeafSize: 2, learningRate: 0.1}
}

func fitBoosted(x [][]float64, y []float64) (*boostedModel, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("no training rows")
	}

	bp := defaultBoostingParams()
	tp := treeParams{maxDepth: bp.maxDepth, minLeafSize: bp.minLeafSize}

	sum := 0.0
	for _, v := range y {
		sum += v
	}
	m := &boostedModel{
		baseline:     sum / float64(n),
		learningRate: bp.learningRate,
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	residuals := make([]float64, n)
	current := make([]float64, n)
	for i := range current {
		current[i] = m.baseline
	}

	for t := 0; t < bp.nTrees; t++ {
		for i := range residuals {
			residuals[i] = y[i] - current[i]
		}
		tree := fitTree(x, residuals, indices, tp, nil)
		m.trees = append(m.trees, tree)
		for i := range current {
			current[i] += m.learningRate * tree.predict(x[i])
		}
	}
	return m, nil
}

func (m *boostedModel) Predict(features []float64) float64 {
	v := m.baseline
	for _, t := range m.trees {
		v += m.learningRate * t.predict(features)
	}
	return v
}

func (m *boostedModel) Forecast(steps int) ([]float64, bool) {
	return nil, false
}
