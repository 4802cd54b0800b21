package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki"
	"github.com/docutag/mathwiki/checkpoint"
	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/store"
)

var flagBatchLimit int

var loadCmd = &cobra.Command{
	Use:   "load <checkpoint>",
	Short: "Merge a checkpoint into the document store",
	Long: `Load writes the competition, exam and problem records of a checkpoint to the
configured store in batches. Fields already in the store that the checkpoint
does not carry, such as topics, are kept.

Examples:
  mathwiki load checkpoints/amc8-all-all.json
  mathwiki load checkpoints/amc10a-2020-2024.json --store postgres --database-url postgres://localhost/mathwiki`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().IntVar(&flagBatchLimit, "batch-limit", store.DefaultWriterConfig().Limit(), "Operations per batch")
	addCheckpointFlags(loadCmd)
	addMetricsFlag(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	st, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	writerConfig := store.DefaultWriterConfig()
	if flagBatchLimit > 0 && flagBatchLimit < writerConfig.Limit() {
		writerConfig.SafetyMargin = writerConfig.Ceiling - flagBatchLimit
	}
	m, stopMetrics := startMetrics(logger)
	defer stopMetrics()
	w := store.NewWriter(st, writerConfig, logger, m)

	report, err := mathwiki.Load(ctx, w, ds, logger)
	if err != nil {
		return err
	}
	logger.Info("checkpoint loaded",
		zap.String("competition", ds.CompetitionID),
		zap.Int("docs", report.Docs),
		zap.Int("batches", report.Batches),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d documents in %d batches\n", report.Docs, report.Batches)
	printSummary(out, models.Summarize(ds))
	return nil
}
