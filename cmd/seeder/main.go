package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
)

// Options controls the synthetic season.
type Options struct {
	Season        string
	Teams         []string
	PerTeam       int
	Games         int
	Seed          int64
	RollingWindow int
}

var defaultTeams = []string{"LAL", "BOS", "DEN", "MIA", "GSW", "PHX", "MIL", "NYK"}

// profile is an athlete's per-game stat means
type profile struct {
	pts, reb, ast, blk, stl, fg3m float64
}

func main() {
	opts := Options{Teams: defaultTeams}
	var out string

	cmd := &cobra.Command{
		Use:   "seeder",
		Short: "Write a synthetic season dataset for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ds, warnings := Generate(opts)
			for _, w := range warnings {
				logger.Sugar().Warnw("Annotation warning", "warning", w)
			}
			if err := dataset.WriteFile(out, ds); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			logger.Sugar().Infow("Synthetic dataset written",
				"path", out,
				"season", ds.Season,
				"athletes", len(ds.Athletes()),
				"rows", len(ds.Records),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "player_data.csv", "Output CSV path")
	cmd.Flags().StringVar(&opts.Season, "season", "2023-24", "Season label")
	cmd.Flags().StringSliceVar(&opts.Teams, "teams", defaultTeams, "Team abbreviations")
	cmd.Flags().IntVar(&opts.PerTeam, "per-team", 5, "Athletes per team")
	cmd.Flags().IntVar(&opts.Games, "games", 40, "Games per athlete")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&opts.RollingWindow, "rolling-window", features.DefaultRollingWindow, "Rolling average window")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Generate builds an annotated dataset. Teams play a shared schedule so
// teammates have games on the same dates against the same opponents.
func Generate(opts Options) (*models.Dataset, []string) {
	if len(opts.Teams) < 2 {
		opts.Teams = defaultTeams
	}
	if opts.PerTeam <= 0 {
		opts.PerTeam = 5
	}
	if opts.Games <= 0 {
		opts.Games = 40
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	start := seasonStart(opts.Season)

	// schedule[team][g] is the opponent and venue of game g
	type fixture struct {
		opponent string
		home     bool
	}
	schedule := make(map[string][]fixture, len(opts.Teams))
	for _, team := range opts.Teams {
		for g := 0; g < opts.Games; g++ {
			opp := team
			for opp == team {
				opp = opts.Teams[rng.Intn(len(opts.Teams))]
			}
			schedule[team] = append(schedule[team], fixture{opponent: opp, home: rng.Intn(2) == 0})
		}
	}

	ds := &models.Dataset{Season: opts.Season}
	var warnings []string
	var id int64 = 1000
	for _, team := range opts.Teams {
		for n := 1; n <= opts.PerTeam; n++ {
			id++
			athlete := models.Athlete{ID: id, Name: fmt.Sprintf("%s Player %d", team, n), Team: team}
			p := randomProfile(rng)

			rows := make([]models.RawRow, 0, opts.Games)
			for g, fx := range schedule[team] {
				marker := "@"
				if fx.home {
					marker = "vs."
				}
				date := start.AddDate(0, 0, g*2)
				rows = append(rows, models.RawRow{
					models.ColGameDate: models.StringCell(date.Format("Jan 02, 2006")),
					models.ColMatchup:  models.StringCell(fmt.Sprintf("%s %s %s", team, marker, fx.opponent)),
					models.ColPoints:   models.NumberCell(sample(rng, p.pts, 0.35)),
					models.ColRebounds: models.NumberCell(sample(rng, p.reb, 0.4)),
					models.ColAssists:  models.NumberCell(sample(rng, p.ast, 0.45)),
					models.ColBlocks:   models.NumberCell(sample(rng, p.blk, 0.8)),
					models.ColSteals:   models.NumberCell(sample(rng, p.stl, 0.8)),
					models.ColThrees:   models.NumberCell(sample(rng, p.fg3m, 0.6)),
					"MIN":              models.NumberCell(math.Round(24 + 12*rng.Float64())),
				})
			}

			annotated := features.Annotate(athlete, rows, features.Options{
				Cutoffs:       features.DefaultCutoffs(),
				RollingWindow: opts.RollingWindow,
			})
			ds.Records = append(ds.Records, annotated.Records...)
			warnings = append(warnings, annotated.Warnings...)
		}
	}
	ds.Columns = dataset.Columns(ds.Records)
	return ds, warnings
}

func randomProfile(rng *rand.Rand) profile {
	scorer := 6 + rng.Float64()*24
	return profile{
		pts:  scorer,
		reb:  2 + rng.Float64()*10,
		ast:  1 + rng.Float64()*8,
		blk:  rng.Float64() * 2.5,
		stl:  rng.Float64() * 2,
		fg3m: rng.Float64() * math.Min(5, scorer/6),
	}
}

// sample draws a non-negative integer around mean with relative spread
func sample(rng *rand.Rand, mean, spread float64) float64 {
	v := mean + rng.NormFloat64()*mean*spread
	if v < 0 {
		return 0
	}
	return math.Round(v)
}

// seasonStart is the third Tuesday of October for a "YYYY-YY" label.
func seasonStart(season string) time.Time {
	year := 2023
	fmt.Sscanf(season, "%d-", &year)
	t := time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != time.Tuesday {
		t = t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 14)
}
