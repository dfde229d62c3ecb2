package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/logic"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/store"
)

func predictCommand(a *app) *cobra.Command {
	var (
		threshold float64
		since     string
		until     string
		teammates bool
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "predict <athlete> <opponent> <category>",
		Short: "Estimate how often an athlete meets a stat threshold against an opponent",
		Example: `  propcast predict "LeBron James" BOS points --threshold 25
  propcast predict "LeBron James" BOS rebounds --since 2024-01-01 --teammates`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			category, err := models.ParseCategory(args[2])
			if err != nil {
				return err
			}
			req := models.PredictRequest{Athlete: args[0], Opponent: args[1], Category: category}
			if threshold != 0 {
				req.Threshold = &threshold
			}

			window, err := parseWindow(since, until)
			if err != nil {
				return err
			}

			b, err := a.connect(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			artifacts, err := a.artifactStore(ctx, b)
			if err != nil {
				return err
			}
			registry, err := artifact.LoadRegistry(ctx, artifacts, a.logger)
			if err != nil {
				return err
			}

			client := a.sourceClient()
			if offline {
				client = nil
			}
			var fs store.FeatureStore = a.featureChain(b, client)
			if !window.start.IsZero() || !window.end.IsZero() {
				fs = windowedStore{FeatureStore: fs, window: window}
			}

			predictions := logic.NewPredictionService(fs, registry, a.logger)
			if teammates {
				res, err := logic.NewRecommendationService(fs, predictions, a.logger).ByPrediction(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			res, err := predictions.Predict(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Stat threshold (0 uses the dynamic threshold)")
	cmd.Flags().StringVar(&since, "since", "", "Only use games on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only use games on or before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&teammates, "teammates", false, "Rank the athlete's teammates instead")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the live provider tier")
	return cmd
}

type dateWindow struct {
	start, end time.Time
}

func parseWindow(since, until string) (dateWindow, error) {
	var w dateWindow
	var err error
	if since != "" {
		if w.start, err = time.Parse(models.GameDateForm, since); err != nil {
			return w, fmt.Errorf("invalid --since %q: %w", since, err)
		}
	}
	if until != "" {
		if w.end, err = time.Parse(models.GameDateForm, until); err != nil {
			return w, fmt.Errorf("invalid --until %q: %w", until, err)
		}
	}
	if !w.start.IsZero() && !w.end.IsZero() && w.end.Before(w.start) {
		return w, fmt.Errorf("--until %s is before --since %s", until, since)
	}
	return w, nil
}

// windowedStore restricts record queries to a date window.
type windowedStore struct {
	store.FeatureStore
	window dateWindow
}

func (s windowedStore) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	recs, err := s.FeatureStore.GetRecords(ctx, athlete)
	if err != nil {
		return nil, err
	}
	return features.FilterByDateRange(recs, s.window.start, s.window.end), nil
}

func (s windowedStore) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	recs, err := s.FeatureStore.GetRecordsForTeam(ctx, team)
	if err != nil {
		return nil, err
	}
	return features.FilterByDateRange(recs, s.window.start, s.window.end), nil
}
