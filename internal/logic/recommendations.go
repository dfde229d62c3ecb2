package logic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/store"
)

// MaxRecommendations caps both ranking modes.
const MaxRecommendations = 5

const (
	ModeSimilarity = "similarity"
	ModePrediction = "prediction"
)

// similarityColumns make up the per-athlete profile vector.
var similarityColumns = []string{models.ColPoints, models.ColRebounds, models.ColAssists}

type recommendationService struct {
	store       store.FeatureStore
	predictions PredictionService
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// NewRecommendationService creates the recommendation engine. Predictive mode reuses
// the given prediction service for every teammate.
func NewRecommendationService(fs store.FeatureStore, predictions PredictionService, logger *zap.Logger) RecommendationService {
	return &recommendationService{
		store:       fs,
		predictions: predictions,
		logger:      logger.Sugar(),
		now:         time.Now,
	}
}

// BySimilarity ranks every other athlete by Euclidean distance between mean
// points, rebounds and assists, closest first.
func (s *recommendationService) BySimilarity(ctx context.Context, athlete string) (*models.RecommendationResult, error) {
	if strings.TrimSpace(athlete) == "" {
		return nil, fmt.Errorf("%w: athlete is required", models.ErrValidation)
	}

	target, err := s.profile(ctx, athlete)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no games for athlete %q", models.ErrNotFound, athlete)
	}

	names, err := s.store.ListAthletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing athletes: %w", err)
	}

	var ranked []models.Recommendation
	skipped := 0
	for _, name := range names {
		if sameAthlete(name, athlete) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.profile(ctx, name)
		if err != nil || p == nil {
			skipped++
			continue
		}
		ranked = append(ranked, models.Recommendation{Athlete: name, Score: euclidean(target, p)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score < ranked[j].Score
		}
		return ranked[i].Athlete < ranked[j].Athlete
	})
	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}

	s.logger.Infow("Similarity ranking computed", "athlete", athlete, "candidates", len(names), "skipped", skipped)
	return &models.RecommendationResult{
		Athlete:         athlete,
		Mode:            ModeSimilarity,
		Recommendations: nonNil(ranked),
		GeneratedAt:     s.now().UTC(),
	}, nil
}

// profile returns the mean stat vector, or nil when the athlete has no usable games.
func (s *recommendationService) profile(ctx context.Context, athlete string) ([]float64, error) {
	recs, err := s.store.GetRecords(ctx, athlete)
	if err != nil {
		return nil, err
	}
	return MeanProfile(recs), nil
}

// MeanProfile averages the similarity columns over the records. A column missing
// from every record makes the profile unusable.
func MeanProfile(records []models.GameRecord) []float64 {
	if len(records) == 0 {
		return nil
	}
	out := make([]float64, len(similarityColumns))
	for i, col := range similarityColumns {
		var sum float64
		n := 0
		for _, r := range records {
			if v, ok := r.Stat(col); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return nil
		}
		out[i] = sum / float64(n)
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var ss float64
	for i := range a {
		d := a[i] - b[i]
		ss += d * d
	}
	return math.Sqrt(ss)
}

// ByPrediction ranks the athlete's teammates by their own likelihood for the same
// opponent, category and threshold, highest first.
func (s *recommendationService) ByPrediction(ctx context.Context, req models.PredictRequest) (*models.RecommendationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	team, err := s.resolveTeam(ctx, req.Athlete)
	if err != nil {
		return nil, err
	}

	teammates, err := s.teammates(ctx, team, req.Athlete)
	if err != nil {
		return nil, err
	}

	result := &models.RecommendationResult{
		Athlete:         req.Athlete,
		Mode:            ModePrediction,
		Team:            team,
		Opponent:        req.Opponent,
		Category:        req.Category,
		Recommendations: []models.Recommendation{},
		GeneratedAt:     s.now().UTC(),
	}
	if len(teammates) == 0 {
		s.logger.Infow("No teammates to rank", "athlete", req.Athlete, "team", team)
		return result, nil
	}

	var ranked []models.Recommendation
	for _, mate := range teammates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub := req
		sub.Athlete = mate
		p, err := s.predictions.Predict(ctx, sub)
		if err != nil {
			if errors.Is(err, models.ErrModelUnavailable) {
				return nil, err
			}
			s.logger.Warnw("Teammate prediction failed", "teammate", mate, "error", err)
			continue
		}
		ranked = append(ranked, models.Recommendation{
			Athlete:    mate,
			Score:      p.LikelihoodValue,
			Likelihood: p.Likelihood,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Athlete < ranked[j].Athlete
	})
	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}
	result.Recommendations = nonNil(ranked)

	s.logger.Infow("Teammate ranking computed",
		"athlete", req.Athlete,
		"team", team,
		"opponent", req.Opponent,
		"category", req.Category,
		"teammates", len(teammates),
		"ranked", len(ranked),
	)
	return result, nil
}

// resolveTeam is the athlete's team in their most recent game.
func (s *recommendationService) resolveTeam(ctx context.Context, athlete string) (string, error) {
	recs, err := s.store.GetRecords(ctx, athlete)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("%w: no games for athlete %q", models.ErrNotFound, athlete)
	}

	latest := RecentForm(recs, 1)[0]
	if latest.Team != "" {
		return latest.Team, nil
	}
	m, err := features.ParseMatchup(latest.Matchup)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve team for %q: %v", models.ErrNotFound, athlete, err)
	}
	return m.Team, nil
}

// teammates lists the distinct other athletes who played for the team, sorted.
func (s *recommendationService) teammates(ctx context.Context, team, athlete string) ([]string, error) {
	recs, err := s.store.GetRecordsForTeam(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("loading team %s: %w", team, err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		key := strings.ToLower(strings.TrimSpace(r.Athlete))
		if key == "" || seen[key] || sameAthlete(r.Athlete, athlete) {
			continue
		}
		seen[key] = true
		out = append(out, r.Athlete)
	}
	sort.Strings(out)
	return out, nil
}

func sameAthlete(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func nonNil(r []models.Recommendation) []models.Recommendation {
	if r == nil {
		return []models.Recommendation{}
	}
	return r
}
