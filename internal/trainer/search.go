package trainer

import (
	"math/rand"

	"github.com/hoopstats/propcast/internal/forest"
	"github.com/hoopstats/propcast/internal/models"
)

// searchSpace is sampled uniformly per dimension.
var searchSpace = struct {
	trees       []int
	maxDepth    []int
	minSplit    []int
	minLeaf     []int
	maxFeatures []string
	bootstrap   []bool
}{
	trees:       []int{50, 100, 200},
	maxDepth:    []int{0, 5, 10, 20},
	minSplit:    []int{2, 5, 10},
	minLeaf:     []int{1, 2, 4},
	maxFeatures: []string{"sqrt", "log2", "all"},
	bootstrap:   []bool{true, false},
}

// sampleParams draws n distinct candidates; the defaults are always the first.
func sampleParams(rng *rand.Rand, n int) []models.Hyperparameters {
	out := []models.Hyperparameters{forest.DefaultParams()}
	seen := map[models.Hyperparameters]bool{out[0]: true}

	s := searchSpace
	for tries := 0; len(out) < n && tries < n*20; tries++ {
		p := models.Hyperparameters{
			Trees:           s.trees[rng.Intn(len(s.trees))],
			MaxDepth:        s.maxDepth[rng.Intn(len(s.maxDepth))],
			MinSamplesSplit: s.minSplit[rng.Intn(len(s.minSplit))],
			MinSamplesLeaf:  s.minLeaf[rng.Intn(len(s.minLeaf))],
			MaxFeatures:     s.maxFeatures[rng.Intn(len(s.maxFeatures))],
			Bootstrap:       s.bootstrap[rng.Intn(len(s.bootstrap))],
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// crossValidate returns the mean k-fold score: accuracy for classifiers, R² for regressors.
func crossValidate(X [][]float64, y []float64, task forest.Task, params models.Hyperparameters, folds int, seed int64) (float64, error) {
	if folds < 2 {
		folds = 2
	}
	if folds > len(X) {
		folds = len(X)
	}

	order := rand.New(rand.NewSource(seed)).Perm(len(X))
	var total float64
	for k := 0; k < folds; k++ {
		var trainX, testX [][]float64
		var trainY, testY []float64
		for pos, i := range order {
			if pos%folds == k {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}

		f, err := forest.Fit(trainX, trainY, task, params, seed+int64(k))
		if err != nil {
			return 0, err
		}
		pred := f.PredictAll(testX)
		if task == forest.Classification {
			total += accuracy(testY, pred)
		} else {
			total += rSquared(testY, pred)
		}
	}
	return total / float64(folds), nil
}
