// Package forest is a small random forest of CART trees for binary
// classification and regression over dense float features.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/hoopstats/propcast/internal/models"
)

// Task selects the split criterion and the meaning of leaf values.
type Task string

const (
	// Classification predicts P(y=1) for 0/1 labels using Gini impurity.
	Classification Task = "classification"
	// Regression predicts the mean target using squared error.
	Regression Task = "regression"
)

var ErrEmptyTrainingSet = errors.New("empty training set")

// DefaultParams mirrors a conventional random forest setup.
func DefaultParams() models.Hyperparameters {
	return models.Hyperparameters{
		Trees:           100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
	}
}

// Node is a tree node. Leaves have Left == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Samples   int     `json:"n"`
}

// Tree is a flattened binary tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a fitted ensemble. It is immutable after Fit and safe for concurrent use.
type Forest struct {
	Task     Task                   `json:"task"`
	Params   models.Hyperparameters `json:"params"`
	Features int                    `json:"features"`
	Trees    []Tree                 `json:"trees"`
}

// Fit trains a forest on X (rows by features) and y. Classification labels must be 0 or 1.
func Fit(X [][]float64, y []float64, task Task, params models.Hyperparameters, seed int64) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("rows (%d) and targets (%d) differ", len(X), len(y))
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return nil, errors.New("no features")
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}
	if task == Classification {
		for i, v := range y {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("row %d: classification label %v is not 0 or 1", i, v)
			}
		}
	}

	params = normalize(params)
	rng := rand.New(rand.NewSource(seed))
	f := &Forest{Task: task, Params: params, Features: nFeatures, Trees: make([]Tree, params.Trees)}

	for t := 0; t < params.Trees; t++ {
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		idx := make([]int, len(X))
		if params.Bootstrap {
			for i := range idx {
				idx[i] = treeRng.Intn(len(X))
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}
		b := &builder{
			X:      X,
			y:      y,
			task:   task,
			params: params,
			mtry:   featuresPerSplit(params.MaxFeatures, nFeatures),
			rng:    treeRng,
		}
		b.grow(idx, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
	return f, nil
}

func normalize(p models.Hyperparameters) models.Hyperparameters {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxDepth < 0 {
		p.MaxDepth = 0
	}
	if p.MaxFeatures == "" {
		p.MaxFeatures = "sqrt"
	}
	return p
}

func featuresPerSplit(strategy string, n int) int {
	var m int
	switch strategy {
	case "sqrt":
		m = int(math.Sqrt(float64(n)))
	case "log2":
		m = int(math.Log2(float64(n)))
	default:
		m = n
	}
	if m < 1 {
		m = 1
	}
	if m > n {
		m = n
	}
	return m
}

// Predict returns P(y=1) for classification or the mean prediction for regression.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictClass thresholds the classification probability at 0.5.
func (f *Forest) PredictClass(x []float64) int {
	if f.Predict(x) >= 0.5 {
		return 1
	}
	return 0
}

// PredictAll predicts every row.
func (f *Forest) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		if f.Task == Classification {
			out[i] = float64(f.PredictClass(x))
		} else {
			out[i] = f.Predict(x)
		}
	}
	return out
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if n.Feature < len(x) && x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// builder grows one tree depth-first
type builder struct {
	X      [][]float64
	y      []float64
	task   Task
	params models.Hyperparameters
	mtry   int
	rng    *rand.Rand
	nodes  []Node
}

func (b *builder) grow(idx []int, depth int) int {
	value, impurity := b.summarize(idx)
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: value, Samples: len(idx)})

	if impurity <= 1e-12 ||
		len(idx) < b.params.MinSamplesSplit ||
		len(idx) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, impurity)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// summarize returns the leaf value and the node impurity (Gini or variance).
func (b *builder) summarize(idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	if b.task == Classification {
		return mean, 2 * mean * (1 - mean)
	}
	return mean, sumSq/n - mean*mean
}

func (b *builder) bestSplit(idx []int, parentImpurity float64) (int, float64, bool) {
	nFeatures := len(b.X[0])
	candidates := b.rng.Perm(nFeatures)[:b.mtry]

	bestFeature, bestThreshold := -1, 0.0
	bestScore := parentImpurity * float64(len(idx))
	minLeaf := b.params.MinSamplesLeaf

	sorted := make([]int, len(idx))
	for _, feat := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][feat] < b.X[sorted[j]][feat] })

		var totalSum, totalSq float64
		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64
		n := len(sorted)
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			lo, hi := b.X[sorted[k]][feat], b.X[sorted[k+1]][feat]
			if lo == hi {
				continue
			}

			score := weightedImpurity(b.task, leftSum, leftSq, nl) +
				weightedImpurity(b.task, totalSum-leftSum, totalSq-leftSq, nr)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = feat
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// weightedImpurity is n times the node impurity
func weightedImpurity(task Task, sum, sumSq float64, n int) float64 {
	fn := float64(n)
	mean := sum / fn
	if task == Classification {
		return fn * 2 * mean * (1 - mean)
	}
	v := sumSq/fn - mean*mean
	if v < 0 {
		v = 0
	}
	return fn * v
}
