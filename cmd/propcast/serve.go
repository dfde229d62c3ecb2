package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/handlers"
	"github.com/hoopstats/propcast/internal/logic"
)

const shutdownTimeout = 30 * time.Second

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	log := a.logger.Sugar()

	b, err := a.connect(ctx, true)
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
		return fmt.Errorf("loading models: %w", err)
	}

	client := a.sourceClient()
	chain := a.featureChain(b, client)
	predictions := logic.NewPredictionService(chain, registry, a.logger)
	recommendations := logic.NewRecommendationService(chain, predictions, a.logger)

	h := handlers.New(handlers.Config{
		Store:          chain,
		Prediction:     predictions,
		Recommendation: recommendations,
		Checks: map[string]handlers.Pinger{
			"clickhouse": b.clickhouse,
			"postgres":   b.pg,
			"redis":      b.snapshot,
		},
		Logger:         a.logger,
		JobContext:     ctx,
		AllowedOrigins: a.cfg.AllowedOrigins,
		GenerateAndTrain: func(ctx context.Context, runID string) error {
			result, err := a.pipeline(b, client).Run(ctx, a.cfg.Season)
			if err != nil {
				return err
			}
			log.Infow("Dataset generated", "runID", runID, "ingestRun", result.RunID, "rows", result.Rows)
			return a.train(ctx, artifacts, a.cfg.DatasetPath)
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("Server listening", "addr", srv.Addr, "season", a.cfg.Season, "tiers", chain.Tiers(), "models", registry.Categories())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Infow("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	h.Wait()
	return err
}
