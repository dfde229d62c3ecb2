// Package trainer fits one decision-tree ensemble per statistical category
// from a season dataset and persists each as a named artifact.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sajari/regression"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/forest"
	"github.com/hoopstats/propcast/internal/models"
)

var (
	trainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propcast_training_duration_seconds",
		Help:    "Duration of one category's training including search",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"category"})

	categoriesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propcast_training_categories_skipped_total",
		Help: "Categories skipped during training",
	}, []string{"category"})
)

// requiredColumns must exist for any training run to start.
var requiredColumns = []string{
	models.ColPoints,
	models.ColRebounds,
	models.ColAssists,
	models.CategoryPoints.LabelColumn(),
}

// minRows is the smallest usable sample for one category.
const minRows = 10

// Config configures training.
type Config struct {
	Kind             models.ModelKind
	TestFraction     float64
	Seed             int64
	Params           models.Hyperparameters
	Search           bool
	SearchIterations int
	CVFolds          int
	Categories       []models.Category
}

// DefaultConfig holds out 20% with seed 42 and trains classifiers without search.
func DefaultConfig() Config {
	return Config{
		Kind:             models.KindClassifier,
		TestFraction:     0.2,
		Seed:             42,
		Params:           forest.DefaultParams(),
		SearchIterations: 20,
		CVFolds:          3,
		Categories:       models.AllCategories,
	}
}

// Trainer trains and persists category models.
type Trainer struct {
	cfg    Config
	store  artifact.Store
	logger *zap.SugaredLogger
}

// New creates a trainer.
func New(cfg Config, store artifact.Store, logger *zap.Logger) *Trainer {
	def := DefaultConfig()
	if cfg.Kind == "" {
		cfg.Kind = def.Kind
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = def.TestFraction
	}
	if cfg.Params.Trees <= 0 {
		cfg.Params = def.Params
	}
	if cfg.SearchIterations <= 0 {
		cfg.SearchIterations = def.SearchIterations
	}
	if cfg.CVFolds < 2 {
		cfg.CVFolds = def.CVFolds
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
	}
	return &Trainer{cfg: cfg, store: store, logger: logger.Sugar()}
}

// Validate checks the globally required columns.
func Validate(ds *models.Dataset) error {
	var missing []string
	for _, col := range requiredColumns {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required columns %s", models.ErrDatasetInvalid, strings.Join(missing, ", "))
	}
	if len(ds.Records) == 0 {
		return fmt.Errorf("%w: dataset has no rows", models.ErrDatasetInvalid)
	}
	return nil
}

// TrainAll trains every configured category independently. A category that cannot be
// trained is skipped with a warning; the run fails only on invalid input or when no
// category produced a model.
func (t *Trainer) TrainAll(ctx context.Context, ds *models.Dataset) (map[models.Category]models.TrainingReport, error) {
	if err := Validate(ds); err != nil {
		return nil, err
	}

	reports := make(map[models.Category]models.TrainingReport)
	for _, c := range t.cfg.Categories {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := t.trainCategory(ctx, ds, c)
		if err != nil {
			categoriesSkipped.WithLabelValues(string(c)).Inc()
			t.logger.Warnw("Skipping category", "category", c, "error", err)
			continue
		}
		reports[c] = report
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: no category could be trained", models.ErrDatasetInvalid)
	}
	return reports, nil
}

var errSkip = errors.New("category skipped")

func (t *Trainer) trainCategory(ctx context.Context, ds *models.Dataset, c models.Category) (models.TrainingReport, error) {
	start := time.Now()
	defer func() { trainingDuration.WithLabelValues(string(c)).Observe(time.Since(start).Seconds()) }()

	target := c.LabelColumn()
	task := forest.Classification
	if t.cfg.Kind == models.KindRegressor {
		target = c.Column()
		task = forest.Regression
	}
	if !ds.HasColumn(target) {
		return models.TrainingReport{}, fmt.Errorf("%w: target column %s missing", errSkip, target)
	}

	featureCols := Features(ds, c)
	if len(featureCols) == 0 {
		return models.TrainingReport{}, fmt.Errorf("%w: no feature columns", errSkip)
	}

	X, y := matrix(ds.Records, featureCols, target)
	if len(X) < minRows {
		return models.TrainingReport{}, fmt.Errorf("%w: %d usable rows, need %d", errSkip, len(X), minRows)
	}

	trainX, trainY, testX, testY := split(X, y, t.cfg.TestFraction, t.cfg.Seed)

	params := t.cfg.Params
	var cvScore *float64
	if t.cfg.Search {
		best, score, err := t.search(ctx, trainX, trainY, task, c)
		if err != nil {
			return models.TrainingReport{}, err
		}
		params, cvScore = best, &score
	}

	f, err := forest.Fit(trainX, trainY, task, params, t.cfg.Seed)
	if err != nil {
		return models.TrainingReport{}, fmt.Errorf("fitting %s: %w", c, err)
	}

	report := models.TrainingReport{
		Category:  c,
		Kind:      t.cfg.Kind,
		Target:    target,
		Features:  featureCols,
		TrainRows: len(trainX),
		TestRows:  len(testX),
		Params:    f.Params,
		CVScore:   cvScore,
		Artifact:  artifact.Name(c),
		TrainedAt: time.Now().UTC(),
	}

	pred := f.PredictAll(testX)
	if task == forest.Classification {
		acc := accuracy(testY, pred)
		report.Accuracy = &acc
	} else {
		mae, mse, r2 := meanAbsoluteError(testY, pred), meanSquaredError(testY, pred), rSquared(testY, pred)
		report.MAE, report.MSE, report.R2 = &mae, &mse, &r2
		if base, err := linearBaseline(trainX, trainY, testX, testY); err == nil {
			report.BaselineR2 = &base
		} else {
			t.logger.Warnw("Linear baseline failed", "category", c, "error", err)
		}
	}
	report.TrainDuration = time.Since(start)

	model := &artifact.Model{
		Category: c,
		Kind:     t.cfg.Kind,
		Features: featureCols,
		Cutoff:   c.DefaultCutoff(),
		Forest:   f,
		Report:   report,
	}
	if err := t.store.Save(ctx, model); err != nil {
		return models.TrainingReport{}, fmt.Errorf("saving %s: %w", artifact.Name(c), err)
	}

	t.logger.Infow("Category model trained",
		"category", c,
		"kind", t.cfg.Kind,
		"trainRows", report.TrainRows,
		"testRows", report.TestRows,
		"accuracy", deref(report.Accuracy),
		"r2", deref(report.R2),
		"duration", report.TrainDuration,
	)
	return report, nil
}

func (t *Trainer) search(ctx context.Context, X [][]float64, y []float64, task forest.Task, c models.Category) (models.Hyperparameters, float64, error) {
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	candidates := sampleParams(rng, t.cfg.SearchIterations)

	best, bestScore := candidates[0], math.Inf(-1)
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			return best, bestScore, err
		}
		score, err := crossValidate(X, y, task, p, t.cfg.CVFolds, t.cfg.Seed)
		if err != nil {
			t.logger.Warnw("Search candidate failed", "category", c, "candidate", i, "error", err)
			continue
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if math.IsInf(bestScore, -1) {
		return best, 0, fmt.Errorf("%w: every search candidate failed", errSkip)
	}
	t.logger.Infow("Hyperparameter search finished", "category", c, "candidates", len(candidates), "cvScore", bestScore, "params", best)
	return best, bestScore, nil
}

// Features lists the model inputs for a category: every raw counting stat in the
// dataset except the category's own, plus the category's rolling average.
func Features(ds *models.Dataset, c models.Category) []string {
	var cols []string
	for _, col := range models.CountingColumns {
		if col == c.Column() || !ds.HasColumn(col) {
			continue
		}
		cols = append(cols, col)
	}
	if ds.HasColumn(c.RollingColumn()) {
		cols = append(cols, c.RollingColumn())
	}
	return cols
}

// matrix keeps the records that carry every feature and the target.
func matrix(records []models.GameRecord, featureCols []string, target string) ([][]float64, []float64) {
	var X [][]float64
	var y []float64
rows:
	for _, r := range records {
		x := make([]float64, len(featureCols))
		for i, col := range featureCols {
			v, ok := value(r, col)
			if !ok {
				continue rows
			}
			x[i] = v
		}
		v, ok := value(r, target)
		if !ok {
			continue
		}
		X = append(X, x)
		y = append(y, v)
	}
	return X, y
}

func value(r models.GameRecord, col string) (float64, bool) {
	if v, ok := r.Stats[col]; ok {
		return v, true
	}
	if v, ok := r.Labels[col]; ok {
		return float64(v), true
	}
	if v, ok := r.Rolling[col]; ok {
		return v, true
	}
	return 0, false
}

// split shuffles with the seed and holds out ceil(fraction*n) rows.
func split(X [][]float64, y []float64, fraction float64, seed int64) ([][]float64, []float64, [][]float64, []float64) {
	n := len(X)
	nTest := int(math.Ceil(fraction * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	order := rand.New(rand.NewSource(seed)).Perm(n)

	var trainX, testX [][]float64
	var trainY, testY []float64
	for pos, i := range order {
		if pos < nTest {
			testX = append(testX, X[i])
			testY = append(testY, y[i])
		} else {
			trainX = append(trainX, X[i])
			trainY = append(trainY, y[i])
		}
	}
	return trainX, trainY, testX, testY
}

// linearBaseline fits ordinary least squares on the training rows and returns test R².
func linearBaseline(trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) (float64, error) {
	r := new(regression.Regression)
	r.SetObserved("target")
	for i := range trainX[0] {
		r.SetVar(i, fmt.Sprintf("x%d", i))
	}
	for i, x := range trainX {
		r.Train(regression.DataPoint(trainY[i], x))
	}
	if err := r.Run(); err != nil {
		return 0, err
	}

	pred := make([]float64, len(testX))
	for i, x := range testX {
		p, err := r.Predict(x)
		if err != nil {
			return 0, err
		}
		pred[i] = p
	}
	return rSquared(testY, pred), nil
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
