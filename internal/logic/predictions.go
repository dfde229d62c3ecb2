package logic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/store"
)

// RecentFormGames is the size of the recent-form sample.
const RecentFormGames = 5

var predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "propcast_predictions_total",
	Help: "Predictions by category and outcome",
}, []string{"category", "outcome"})

type predictionService struct {
	store    store.FeatureStore
	registry ModelRegistry
	logger   *zap.SugaredLogger
}

// NewPredictionService creates the prediction engine. The registry is read-only
// and shared by every request.
func NewPredictionService(fs store.FeatureStore, registry ModelRegistry, logger *zap.Logger) PredictionService {
	return &predictionService{store: fs, registry: registry, logger: logger.Sugar()}
}

// Predict blends the athlete's recent form with their history against the opponent
// and reports how often the category stat met the threshold in that sample.
func (s *predictionService) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error) {
	res, err := s.predict(ctx, req)
	predictionsTotal.WithLabelValues(string(req.Category), outcome(err)).Inc()
	return res, err
}

func (s *predictionService) predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	model, ok := s.registry.Get(req.Category)
	if !ok {
		return nil, fmt.Errorf("%w: no trained model for %s", models.ErrModelUnavailable, req.Category)
	}

	records, source, err := s.records(ctx, req.Athlete)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no games for athlete %q", models.ErrNotFound, req.Athlete)
	}

	recent := RecentForm(records, RecentFormGames)
	history := OpponentHistory(records, req.Opponent)
	combined := Combine(history, recent)
	if len(combined) == 0 {
		return nil, fmt.Errorf("%w: no games to sample for %s", models.ErrInsufficientData, req.Athlete)
	}

	threshold, dynamic := 0.0, false
	if req.Threshold != nil && *req.Threshold != 0 {
		threshold = *req.Threshold
	} else {
		threshold, err = DynamicThreshold(history, req.Category)
		if err != nil {
			return nil, fmt.Errorf("%s vs %s: %w", req.Athlete, req.Opponent, err)
		}
		dynamic = true
	}

	// a row without the stat counts against the threshold
	met, withStat := 0, 0
	for _, r := range combined {
		v, ok := r.CategoryValue(req.Category)
		if !ok {
			continue
		}
		withStat++
		if v >= threshold {
			met++
		}
	}
	if withStat == 0 {
		return nil, fmt.Errorf("%w: no %s values in sample", models.ErrInsufficientData, req.Category.Column())
	}
	considered := len(combined)
	likelihood := float64(met) / float64(considered) * 100

	result := &models.PredictionResult{
		Athlete:          req.Athlete,
		Opponent:         req.Opponent,
		Category:         req.Category,
		Threshold:        threshold,
		DynamicThreshold: dynamic,
		Likelihood:       FormatLikelihood(likelihood),
		LikelihoodValue:  math.Round(likelihood*100) / 100,
		GamesConsidered:  considered,
		GamesMet:         met,
		Source:           source,
		RecentGames:      newestFirst(recent),
		Games:            history,
	}
	if x, ok := model.MeanVector(combined); ok {
		p := model.Probability(x)
		result.ModelProbability = &p
	}

	s.logger.Infow("Prediction computed",
		"athlete", req.Athlete,
		"opponent", req.Opponent,
		"category", req.Category,
		"threshold", threshold,
		"dynamic", dynamic,
		"games", considered,
		"met", met,
		"likelihood", result.Likelihood,
		"source", source,
	)
	return result, nil
}

func (s *predictionService) records(ctx context.Context, athlete string) ([]models.GameRecord, string, error) {
	if ss, ok := s.store.(sourcedStore); ok {
		return ss.GetRecordsFrom(ctx, athlete)
	}
	recs, err := s.store.GetRecords(ctx, athlete)
	return recs, "store", err
}

func validateRequest(req models.PredictRequest) error {
	if strings.TrimSpace(req.Athlete) == "" {
		return fmt.Errorf("%w: athlete is required", models.ErrValidation)
	}
	if strings.TrimSpace(req.Opponent) == "" {
		return fmt.Errorf("%w: opponent is required", models.ErrValidation)
	}
	if !req.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", models.ErrValidation, req.Category)
	}
	if req.Threshold != nil {
		t := *req.Threshold
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return fmt.Errorf("%w: threshold must be a non-negative number", models.ErrValidation)
		}
	}
	return nil
}

// RecentForm returns the n most recent games, oldest first. Games on the same date
// keep their original order.
func RecentForm(records []models.GameRecord, n int) []models.GameRecord {
	sorted := append([]models.GameRecord(nil), records...)
	models.SortChronological(sorted)
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// OpponentHistory returns the games whose matchup mentions the opponent, oldest first.
func OpponentHistory(records []models.GameRecord, opponent string) []models.GameRecord {
	var out []models.GameRecord
	for _, r := range records {
		if features.MatchupContains(r.Matchup, opponent) {
			out = append(out, r)
		}
	}
	models.SortChronological(out)
	return out
}

// Combine unions the samples, dropping exact duplicate rows, oldest first.
func Combine(samples ...[]models.GameRecord) []models.GameRecord {
	seen := make(map[string]bool)
	var out []models.GameRecord
	for _, sample := range samples {
		for _, r := range sample {
			k := recordKey(r)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	models.SortChronological(out)
	return out
}

// recordKey identifies a row by its ID, or by its full contents when it has none.
func recordKey(r models.GameRecord) string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	var b strings.Builder
	b.WriteString(r.Athlete)
	b.WriteByte('|')
	b.WriteString(r.GameDate.Format(models.GameDateForm))
	b.WriteByte('|')
	b.WriteString(r.Matchup)

	cols := make([]string, 0, len(r.Stats))
	for c := range r.Stats {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		b.WriteByte('|')
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(r.Stats[c], 'g', -1, 64))
	}
	return b.String()
}

// DynamicThreshold is mean + 0.5 * sample standard deviation of the category stat
// over the opponent history. Fewer than two values is ErrInsufficientData.
func DynamicThreshold(history []models.GameRecord, c models.Category) (float64, error) {
	var vals []float64
	for _, r := range history {
		if v, ok := r.CategoryValue(c); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return 0, fmt.Errorf("%w: dynamic threshold needs at least 2 games against the opponent, have %d",
			models.ErrInsufficientData, len(vals))
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(vals)-1))
	return mean + 0.5*std, nil
}

// FormatLikelihood renders a percentage with two decimals, e.g. "66.67%".
func FormatLikelihood(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

func newestFirst(records []models.GameRecord) []models.GameRecord {
	out := make([]models.GameRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, models.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, models.ErrSourceUnavailable):
		return "source_unavailable"
	default:
		return "error"
	}
}
