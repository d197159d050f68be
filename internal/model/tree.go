package model

import (
	"math"
	"sort"
)

// Node is one decision node in a regression tree. Numeric splits send
// x <= Threshold left; categorical splits send x == Threshold left.
type Node struct {
	Feature     int     `json:"f"`
	Threshold   float64 `json:"t"`
	Categorical bool    `json:"c,omitempty"`
	Left        int     `json:"l"`
	Right       int     `json:"r"`
	Leaf        bool    `json:"leaf,omitempty"`
	Value       float64 `json:"v"`
}

// Tree is a regression tree stored as a flat node array (root at index 0).
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for one feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := 0.0
		if n.Feature < len(x) {
			v = x[n.Feature]
		}
		goLeft := v <= n.Threshold
		if n.Categorical {
			goLeft = v == n.Threshold
		}
		if goLeft {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth      int
	minLeaf       int
	maxThresholds int // cap on numeric split candidates per feature
	categorical   []bool
}

// growTree fits a tree to the gradient targets over the given sample set.
// It returns the tree plus the sample indexes landing in each leaf, so the
// quantile objective can refit leaf values afterwards.
func growTree(x [][]float64, target []float64, samples []int, p treeParams) (*Tree, map[int][]int) {
	t := &Tree{}
	leafSamples := make(map[int][]int)
	build(t, x, target, samples, 0, p, leafSamples)
	return t, leafSamples
}

func build(t *Tree, x [][]float64, target []float64, samples []int, depth int, p treeParams, leafSamples map[int][]int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{})

	if depth >= p.maxDepth || len(samples) < 2*p.minLeaf {
		makeLeaf(t, idx, target, samples, leafSamples)
		return idx
	}

	feature, threshold, categorical, gain := bestSplit(x, target, samples, p)
	if gain <= 0 {
		makeLeaf(t, idx, target, samples, leafSamples)
		return idx
	}

	var left, right []int
	for _, s := range samples {
		v := x[s][feature]
		goLeft := v <= threshold
		if categorical {
			goLeft = v == threshold
		}
		if goLeft {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		makeLeaf(t, idx, target, samples, leafSamples)
		return idx
	}

	l := build(t, x, target, left, depth+1, p, leafSamples)
	r := build(t, x, target, right, depth+1, p, leafSamples)
	t.Nodes[idx] = Node{Feature: feature, Threshold: threshold, Categorical: categorical, Left: l, Right: r}
	return idx
}

func makeLeaf(t *Tree, idx int, target []float64, samples []int, leafSamples map[int][]int) {
	sum := 0.0
	for _, s := range samples {
		sum += target[s]
	}
	value := 0.0
	if len(samples) > 0 {
		value = sum / float64(len(samples))
	}
	t.Nodes[idx] = Node{Leaf: true, Value: value}
	leafSamples[idx] = samples
}

// bestSplit searches every feature for the variance-reducing split with the
// highest gain. Numeric candidates are midpoints between sorted unique
// values (strided down to maxThresholds); categorical candidates are
// one-vs-rest on each category code.
func bestSplit(x [][]float64, target []float64, samples []int, p treeParams) (feature int, threshold float64, categorical bool, gain float64) {
	var sumAll float64
	for _, s := range samples {
		sumAll += target[s]
	}
	n := float64(len(samples))
	parentScore := sumAll * sumAll / n

	bestGain := 0.0
	nFeatures := 0
	if len(samples) > 0 {
		nFeatures = len(x[samples[0]])
	}

	for f := 0; f < nFeatures; f++ {
		isCat := f < len(p.categorical) && p.categorical[f]

		values := make([]float64, 0, len(samples))
		for _, s := range samples {
			values = append(values, x[s][f])
		}
		candidates := splitCandidates(values, isCat, p.maxThresholds)

		for _, cand := range candidates {
			var sumL float64
			var nL int
			for i, s := range samples {
				v := values[i]
				goLeft := v <= cand
				if isCat {
					goLeft = v == cand
				}
				if goLeft {
					sumL += target[s]
					nL++
				}
			}
			nR := len(samples) - nL
			if nL < p.minLeaf || nR < p.minLeaf {
				continue
			}
			sumR := sumAll - sumL
			score := sumL*sumL/float64(nL) + sumR*sumR/float64(nR)
			if g := score - parentScore; g > bestGain {
				bestGain = g
				feature = f
				threshold = cand
				categorical = isCat
			}
		}
	}
	return feature, threshold, categorical, bestGain
}

func splitCandidates(values []float64, categorical bool, maxThresholds int) []float64 {
	uniq := make([]float64, len(values))
	copy(uniq, values)
	sort.Float64s(uniq)
	uniq = dedupe(uniq)
	if len(uniq) < 2 {
		return nil
	}

	if categorical {
		return uniq
	}

	mids := make([]float64, 0, len(uniq)-1)
	for i := 0; i+1 < len(uniq); i++ {
		mids = append(mids, (uniq[i]+uniq[i+1])/2)
	}
	if maxThresholds > 0 && len(mids) > maxThresholds {
		stride := float64(len(mids)) / float64(maxThresholds)
		sampled := make([]float64, 0, maxThresholds)
		for i := 0; i < maxThresholds; i++ {
			sampled = append(sampled, mids[int(math.Floor(float64(i)*stride))])
		}
		mids = sampled
	}
	return mids
}

func dedupe(sorted []float64) []float64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
