package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki/checkpoint"
	"github.com/docutag/mathwiki/classify"
	"github.com/docutag/mathwiki/metrics"
	"github.com/docutag/mathwiki/models"
)

var flagBatchSize int

var classifyCmd = &cobra.Command{
	Use:   "classify <checkpoint>",
	Short: "Label the topic of every problem in a checkpoint",
	Long: `Classify sends the problems of a checkpoint to Gemini in batches and writes
the topic labels back into the same checkpoint. GEMINI_API_KEY must be set.

Examples:
  mathwiki classify checkpoints/amc8-all-all.json
  mathwiki classify amc8-2024-2024.json --s3-bucket datasets`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().IntVar(&flagBatchSize, "batch-size", classify.DefaultConfig().BatchSize, "Problems per request")
	addCheckpointFlags(classifyCmd)
	addMetricsFlag(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	storage, key, err := openCheckpoint(ctx, args[0])
	if err != nil {
		return err
	}
	ds, err := checkpoint.Load(ctx, storage, key)
	if err != nil {
		return err
	}

	m, stopMetrics := startMetrics(logger)
	defer stopMetrics()
	report, err := enrich(ctx, ds, logger, m)
	if err != nil {
		return err
	}

	written, err := checkpoint.Save(ctx, storage, key, ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Classified %d problems in %d batches (%d fell back to the default label)\nCheckpoint: %s\n",
		report.Problems, report.Batches, report.Fallbacks, written)
	return nil
}

// enrich labels ds in place with a Gemini backed classifier
func enrich(ctx context.Context, ds *models.Dataset, logger *zap.Logger, m *metrics.Metrics) (classify.EnrichReport, error) {
	geminiConfig, err := classify.GeminiConfigFromEnv()
	if err != nil {
		return classify.EnrichReport{}, err
	}
	gemini, err := classify.NewGemini(ctx, geminiConfig)
	if err != nil {
		return classify.EnrichReport{}, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	config := classify.DefaultConfig()
	config.Competition = ds.CompetitionName
	if flagBatchSize > 0 {
		config.BatchSize = flagBatchSize
	}
	classifier, err := classify.New(gemini, config, logger, m)
	if err != nil {
		return classify.EnrichReport{}, err
	}
	return classifier.Enrich(ctx, ds), nil
}
