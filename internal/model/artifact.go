package model

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Artifact bundles a trained model with everything inference needs to
// reproduce the training-time encoding: the ordered feature list, which
// features are categorical, and the exact category set per categorical
// feature. Artifacts are persisted opaquely and loaded read-only at
// forecast time.
type Artifact struct {
	ID          string                    `json:"id"`
	Target      string                    `json:"target"`
	Features    []string                  `json:"features"`
	Categorical []string                  `json:"categorical"`
	Categories  map[string]*CategoryTable `json:"categories"`
	Model       *GBT                      `json:"model"`
	TrainedAt   time.Time                 `json:"trainedAt"`
	TrainRows   int                       `json:"trainRows"`
}

// NewArtifact wraps a trained model with its encoding metadata.
func NewArtifact(target string, features, categorical []string, categories map[string]*CategoryTable, m *GBT, trainedAt time.Time, rows int) *Artifact {
	return &Artifact{
		ID:          uuid.NewString(),
		Target:      target,
		Features:    features,
		Categorical: categorical,
		Categories:  categories,
		Model:       m,
		TrainedAt:   trainedAt,
		TrainRows:   rows,
	}
}

// Marshal serializes the artifact for opaque storage.
func (a *Artifact) Marshal() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact %s: %w", a.Target, err)
	}
	return data, nil
}

// UnmarshalArtifact restores a persisted artifact.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("artifact %s has no model payload", a.Target)
	}
	return &a, nil
}

// Vector builds the encoded feature vector in training order. Numeric
// features missing from the input fill with a neutral zero; their names are
// returned so the caller can log the degradation once. Unseen categorical
// values encode to UnseenCategoryCode rather than erroring.
func (a *Artifact) Vector(numeric map[string]float64, cats map[string]string) ([]float64, []string) {
	x := make([]float64, len(a.Features))
	var missing []string
	for i, name := range a.Features {
		if table, ok := a.Categories[name]; ok {
			x[i] = table.Code(cats[name])
			continue
		}
		v, ok := numeric[name]
		if !ok {
			missing = append(missing, name)
		}
		x[i] = v
	}
	return x, missing
}

// Predict encodes the inputs and scores the model.
func (a *Artifact) Predict(numeric map[string]float64, cats map[string]string) float64 {
	x, _ := a.Vector(numeric, cats)
	return a.Model.Predict(x)
}
