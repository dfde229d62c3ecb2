package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/trainer"
)

func trainCommand(a *app) *cobra.Command {
	var (
		path       string
		mode       string
		search     bool
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train one model per category from a dataset file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if path == "" {
				path = a.cfg.DatasetPath
			}

			tc := a.cfg.TrainerConfig()
			switch models.ModelKind(mode) {
			case "":
			case models.KindClassifier, models.KindRegressor:
				tc.Kind = models.ModelKind(mode)
			default:
				return fmt.Errorf("invalid --mode %q: want classifier or regressor", mode)
			}
			if cmd.Flags().Changed("search") {
				tc.Search = search
			}
			var selected []models.Category
			for _, raw := range categories {
				c, err := models.ParseCategory(raw)
				if err != nil {
					return err
				}
				selected = append(selected, c)
			}
			if len(selected) > 0 {
				tc.Categories = selected
			}

			ds, err := dataset.ReadFile(path)
			if err != nil {
				return err
			}

			b, err := a.connect(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()
			store, err := a.artifactStore(ctx, b)
			if err != nil {
				return err
			}

			reports, err := trainer.New(tc, store, a.logger).TrainAll(ctx, ds)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().StringVar(&path, "dataset", "", "Dataset CSV (default: DATASET_PATH)")
	cmd.Flags().StringVar(&mode, "mode", "", "classifier or regressor (default: TRAIN_MODE)")
	cmd.Flags().BoolVar(&search, "search", false, "Run hyperparameter search")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Categories to train (default: all)")
	return cmd
}
