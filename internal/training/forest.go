package training

import (
	"fmt"
	"math/rand"
)

// forestModel is a bagged ensemble of regression trees. Each tree sees a
// bootstrap sample of the rows and a random feature subset per split.
type forestModel struct {
	trees []*regressionTree
}

type forestParams struct {
	nTrees      int
	maxDepth    int
	minLeafSize int
}

func defaultForestParams() forestParams {
	return forestParams{nTrees: 50, maxDepth: 8, minLeafSize: 2}
}

func fitForest(x [][]float64, y []float64, seed int64) (*forestModel, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("no training rows")
	}

	fp := defaultForestParams()
	tp := treeParams{
		maxDepth:      fp.maxDepth,
		minLeafSize:   fp.minLeafSize,
		featureSubset: sqrtSubset(len(x[0])),
	}
	rng := rand.New(rand.NewSource(seed))

	m := &forestModel{trees: make([]*regressionTree, 0, fp.nTrees)}
	sample := make([]int, n)
	for t := 0; t < fp.nTrees; t++ {
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		m.trees = append(m.trees, fitTree(x, y, sample, tp, rng))
	}
	return m, nil
}

func (m *forestModel) Predict(features []float64) float64 {
	sum := 0.0
	for _, t := range m.trees {
		sum += t.predict(features)
	}
	return sum / float64(len(m.trees))
}

func (m *forestModel) Forecast(steps int) ([]float64, bool) {
	return nil, false
}
