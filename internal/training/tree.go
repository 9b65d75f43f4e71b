package training

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a regression tree. Leaves have left == nil.
type treeNode struct {
	featureIdx int
	threshold  float64
	value      float64
	left       *treeNode
	right      *treeNode
}

// regressionTree is a CART regression tree splitting on squared-error
// reduction.
type regressionTree struct {
	root *treeNode
}

// treeParams bounds tree growth. featureSubset limits how many features a
// node may consider; zero means all of them.
type treeParams struct {
	maxDepth      int
	minLeafSize   int
	featureSubset int
}

// fitTree grows a tree on the rows selected by indices. rng is only used to
// sample the feature subset and may be nil when featureSubset is zero.
func fitTree(x [][]float64, y []float64, indices []int, p treeParams, rng *rand.Rand) *regressionTree {
	return &regressionTree{root: growNode(x, y, indices, 0, p, rng)}
}

func growNode(x [][]float64, y []float64, indices []int, depth int, p treeParams, rng *rand.Rand) *treeNode {
	node := &treeNode{value: meanAt(y, indices)}

	if depth >= p.maxDepth || len(indices) < 2*p.minLeafSize {
		return node
	}

	feat, thr, ok := bestSplit(x, y, indices, p, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minLeafSize || len(right) < p.minLeafSize {
		return node
	}

	node.featureIdx = feat
	node.threshold = thr
	node.left = growNode(x, y, left, depth+1, p, rng)
	node.right = growNode(x, y, right, depth+1, p, rng)
	return node
}

// bestSplit scans candidate features for the threshold with the largest
// squared-error reduction, using running sums over the sorted column.
func bestSplit(x [][]float64, y []float64, indices []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(x[indices[0]])
	features := candidateFeatures(nFeatures, p.featureSubset, rng)

	bestGain := 0.0
	bestFeat := -1
	bestThr := 0.0

	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}
	n := float64(len(indices))
	parentSSE := totalSq - totalSum*totalSum/n

	sorted := make([]int, len(indices))
	for _, feat := range features {
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return x[sorted[a]][feat] < x[sorted[b]][feat]
		})

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			cur, next := x[i][feat], x[sorted[k+1]][feat]
			if cur == next {
				continue
			}

			nl := float64(k + 1)
			nr := n - nl
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			gain := parentSSE - sse
			if gain > bestGain {
				bestGain = gain
				bestFeat = feat
				bestThr = (cur + next) / 2
			}
		}
	}

	if bestFeat < 0 || bestGain <= 1e-12 {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}

func candidateFeatures(nFeatures, subset int, rng *rand.Rand) []int {
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	if subset <= 0 || subset >= nFeatures || rng == nil {
		return all
	}
	rng.Shuffle(nFeatures, func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:subset]
	sort.Ints(picked)
	return picked
}

func meanAt(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

// predict walks the tree for one feature row.
func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	for node.left != nil {
		if row[node.featureIdx] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// sqrtSubset returns the rounded square root of n, at least 1.
func sqrtSubset(n int) int {
	s := int(math.Round(math.Sqrt(float64(n))))
	if s < 1 {
		return 1
	}
	return s
}
