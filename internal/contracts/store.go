package contracts

import "context"

// Stage identifies one pipeline stage. Stages form a chain; re-running a
// stage invalidates the artifacts derived from its output.
type Stage string

const (
	StageDataset    Stage = "dataset"
	StagePreprocess Stage = "preprocess"
	StageFeatures   Stage = "features"
	StageTraining   Stage = "training"
	StageForecast   Stage = "forecast"
	StageEvaluation Stage = "evaluation"
	StageInsights   Stage = "insights"
)

// StageOrder lists the stages in execution order.
func StageOrder() []Stage {
	return []Stage{
		StageDataset, StagePreprocess, StageFeatures,
		StageTraining, StageForecast, StageEvaluation, StageInsights,
	}
}

// Downstream returns the stages strictly after s in execution order.
func Downstream(s Stage) []Stage {
	order := StageOrder()
	for i, st := range order {
		if st == s {
			return order[i+1:]
		}
	}
	return nil
}

// ArtifactStore persists per-session stage outputs. Implementations must
// round-trip artifacts through an encoding so callers never share mutable
// state with the store.
type ArtifactStore interface {
	Write(ctx context.Context, sessionID string, stage Stage, artifact interface{}) error
	Read(ctx context.Context, sessionID string, stage Stage, dest interface{}) error
	Delete(ctx context.Context, sessionID string, stages ...Stage) error
	Sessions(ctx context.Context) ([]string, error)
}
