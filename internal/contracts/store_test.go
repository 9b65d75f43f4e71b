package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageOrder(t *testing.T) {
	order := StageOrder()
	assert.Equal(t, []Stage{
		StageDataset, StagePreprocess, StageFeatures,
		StageTraining, StageForecast, StageEvaluation, StageInsights,
	}, order)
}

func TestDownstream(t *testing.T) {
	assert.Equal(t, []Stage{
		StageFeatures, StageTraining, StageForecast, StageEvaluation, StageInsights,
	}, Downstream(StagePreprocess))

	assert.Empty(t, Downstream(StageInsights))
	assert.Nil(t, Downstream(Stage("unknown")))
}

func TestCategoryEncoderFirstSeen(t *testing.T) {
	var e CategoryEncoder

	assert.Equal(t, 0, e.Code("mapo"))
	assert.Equal(t, 1, e.Code("gangnam"))
	assert.Equal(t, 0, e.Code("mapo"))
	assert.Equal(t, 2, e.Code("jongno"))

	assert.Equal(t, []string{"mapo", "gangnam", "jongno"}, e.Labels)
}

func TestFeatureOptionsMaxLookback(t *testing.T) {
	opts := FeatureOptions{Lags: []int{1, 7, 14}, Windows: []int{7, 30}}
	assert.Equal(t, 30, opts.MaxLookback())

	opts = FeatureOptions{Lags: []int{21}, Windows: []int{7}}
	assert.Equal(t, 21, opts.MaxLookback())
}
