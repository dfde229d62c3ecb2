package main

import (
	"github.com/spf13/cobra"
)

func ingestCommand(a *app) *cobra.Command {
	var season string
	var thenTrain bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every active athlete's season log and write the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if season != "" {
				a.cfg.Season = season
			}

			b, err := a.connect(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			result, err := a.pipeline(b, a.sourceClient()).Run(ctx, a.cfg.Season)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}

			if !thenTrain {
				return nil
			}
			artifacts, err := a.artifactStore(ctx, b)
			if err != nil {
				return err
			}
			return a.train(ctx, artifacts, a.cfg.DatasetPath)
		},
	}

	cmd.Flags().StringVar(&season, "season", "", "Season to ingest, e.g. 2023-24 (default: current season)")
	cmd.Flags().BoolVar(&thenTrain, "train", false, "Train every category from the new dataset")
	return cmd
}
