package model

import (
	"fmt"
	"math"
	"sort"
)

// Objective selects the boosting loss.
type Objective string

const (
	// ObjectiveSquared trains a point-estimate regression.
	ObjectiveSquared Objective = "squared"
	// ObjectiveQuantile trains a pinball-loss regression at Alpha.
	ObjectiveQuantile Objective = "quantile"
)

// Params are the gradient-boosting hyperparameters.
type Params struct {
	Objective           Objective
	Alpha               float64 // quantile level, only for ObjectiveQuantile
	NumTrees            int
	LearningRate        float64
	MaxDepth            int
	MinLeafSamples      int
	MaxThresholds       int // numeric split candidates per feature, 0 = default 32
	EarlyStoppingRounds int // 0 disables early stopping
}

// Dataset is an encoded training frame: categorical features are already
// category codes in the X matrix.
type Dataset struct {
	FeatureNames []string
	Categorical  []bool // aligned with FeatureNames
	X            [][]float64
	Y            []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// GBT is a trained gradient-boosted tree ensemble.
type GBT struct {
	Objective    Objective `json:"objective"`
	Alpha        float64   `json:"alpha,omitempty"`
	LearningRate float64   `json:"learningRate"`
	Base         float64   `json:"base"`
	Trees        []Tree    `json:"trees"`
}

// Predict scores one encoded feature vector.
func (m *GBT) Predict(x []float64) float64 {
	pred := m.Base
	for i := range m.Trees {
		pred += m.LearningRate * m.Trees[i].Predict(x)
	}
	return pred
}

// Train fits a GBT on the dataset. When valid is non-nil its loss drives
// early stopping: training stops after EarlyStoppingRounds iterations
// without improvement and the ensemble is truncated to the best iteration.
// Training is deterministic: no subsampling, no random feature selection.
func Train(ds *Dataset, p Params, valid *Dataset) (*GBT, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if p.Objective == ObjectiveQuantile && (p.Alpha <= 0 || p.Alpha >= 1) {
		return nil, fmt.Errorf("quantile alpha out of range: %v", p.Alpha)
	}
	if p.NumTrees <= 0 {
		p.NumTrees = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 6
	}
	if p.MinLeafSamples <= 0 {
		p.MinLeafSamples = 1
	}
	if p.MaxThresholds <= 0 {
		p.MaxThresholds = 32
	}

	m := &GBT{
		Objective:    p.Objective,
		Alpha:        p.Alpha,
		LearningRate: p.LearningRate,
		Base:         baseScore(ds.Y, p),
	}

	n := ds.Len()
	preds := make([]float64, n)
	for i := range preds {
		preds[i] = m.Base
	}

	var validPreds []float64
	if valid != nil && valid.Len() > 0 {
		validPreds = make([]float64, valid.Len())
		for i := range validPreds {
			validPreds[i] = m.Base
		}
	}

	samples := make([]int, n)
	for i := range samples {
		samples[i] = i
	}
	tp := treeParams{
		maxDepth:      p.MaxDepth,
		minLeaf:       p.MinLeafSamples,
		maxThresholds: p.MaxThresholds,
		categorical:   ds.Categorical,
	}

	grad := make([]float64, n)
	bestLoss := math.MaxFloat64
	bestIter := -1

	for t := 0; t < p.NumTrees; t++ {
		for i := 0; i < n; i++ {
			grad[i] = pseudoResidual(ds.Y[i], preds[i], p)
		}

		tree, leaves := growTree(ds.X, grad, samples, tp)
		if p.Objective == ObjectiveQuantile {
			refitQuantileLeaves(tree, leaves, ds.Y, preds, p.Alpha)
		}
		m.Trees = append(m.Trees, *tree)

		for i := 0; i < n; i++ {
			preds[i] += p.LearningRate * tree.Predict(ds.X[i])
		}

		if validPreds == nil {
			continue
		}
		for i := range validPreds {
			validPreds[i] += p.LearningRate * tree.Predict(valid.X[i])
		}
		loss := meanLoss(valid.Y, validPreds, p)
		if loss < bestLoss-1e-12 {
			bestLoss = loss
			bestIter = t
		} else if p.EarlyStoppingRounds > 0 && t-bestIter >= p.EarlyStoppingRounds {
			break
		}
	}

	if validPreds != nil && bestIter >= 0 && bestIter+1 < len(m.Trees) {
		m.Trees = m.Trees[:bestIter+1]
	}
	return m, nil
}

func baseScore(y []float64, p Params) float64 {
	if p.Objective == ObjectiveQuantile {
		return quantileOf(y, p.Alpha)
	}
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func pseudoResidual(y, pred float64, p Params) float64 {
	if p.Objective == ObjectiveQuantile {
		if y > pred {
			return p.Alpha
		}
		return p.Alpha - 1
	}
	return y - pred
}

// refitQuantileLeaves replaces leaf values with the alpha-quantile of the
// current residuals in each leaf, the standard quantile-boosting step.
func refitQuantileLeaves(t *Tree, leaves map[int][]int, y, preds []float64, alpha float64) {
	for idx, samples := range leaves {
		if len(samples) == 0 {
			continue
		}
		residuals := make([]float64, len(samples))
		for i, s := range samples {
			residuals[i] = y[s] - preds[s]
		}
		t.Nodes[idx].Value = quantileOf(residuals, alpha)
	}
}

func meanLoss(y, preds []float64, p Params) float64 {
	sum := 0.0
	for i := range y {
		d := y[i] - preds[i]
		if p.Objective == ObjectiveQuantile {
			if d >= 0 {
				sum += p.Alpha * d
			} else {
				sum += (p.Alpha - 1) * d
			}
		} else {
			sum += d * d
		}
	}
	return sum / float64(len(y))
}

func quantileOf(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
