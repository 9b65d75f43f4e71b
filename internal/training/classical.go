package training

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/timeseries"
)

// classicalModel wraps an ARIMA(1,1,1) fit. It forecasts natively over its
// own series, so Predict on a feature row is not meaningful and returns NaN.
type classicalModel struct {
	full *arima.Model
}

// fitClassical fits two ARIMA models: one on the training window to produce
// held-out predictions, and one on the whole series for future forecasting.
func fitClassical(train, full []float64, testSteps int) (*classicalModel, []float64, error) {
	trainModel := arima.New(1, 1, 1)
	if err := trainModel.Fit(&timeseries.Series{Values: append([]float64(nil), train...)}); err != nil {
		return nil, nil, fmt.Errorf("fit on training window: %w", err)
	}
	testPred, err := trainModel.Predict(testSteps)
	if err != nil {
		return nil, nil, fmt.Errorf("predict held-out window: %w", err)
	}

	fullModel := arima.New(1, 1, 1)
	if err := fullModel.Fit(&timeseries.Series{Values: append([]float64(nil), full...)}); err != nil {
		return nil, nil, fmt.Errorf("fit on full series: %w", err)
	}

	return &classicalModel{full: fullModel}, testPred, nil
}

func (m *classicalModel) Predict(features []float64) float64 {
	return math.NaN()
}

func (m *classicalModel) Forecast(steps int) ([]float64, bool) {
	preds, err := m.full.Predict(steps)
	if err != nil {
		return nil, false
	}
	return preds, true
}
