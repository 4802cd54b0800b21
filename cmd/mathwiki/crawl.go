package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki"
	"github.com/docutag/mathwiki/checkpoint"
	"github.com/docutag/mathwiki/competitions"
	"github.com/docutag/mathwiki/models"
)

var (
	flagFrom     int
	flagTo       int
	flagProblems []int
	flagOut      string
	flagClassify bool
	flagDelay    time.Duration
	flagRetries  int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <competition>",
	Short: "Crawl a competition and write a JSON checkpoint",
	Long: `Crawl visits the competition index page, every exam year it links and every
problem of those exams, then writes the records to a JSON checkpoint.

Examples:
  mathwiki crawl amc8
  mathwiki crawl amc10a --from 2020 --to 2024 --out ./data/amc10a.json
  mathwiki crawl amc8 --from 2024 --to 2024 --problems 1,2,3 --classify`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	defaults := mathwiki.DefaultConfig()
	crawlCmd.Flags().IntVar(&flagFrom, "from", 0, "First exam year (default: oldest linked)")
	crawlCmd.Flags().IntVar(&flagTo, "to", 0, "Last exam year (default: newest linked)")
	crawlCmd.Flags().IntSliceVar(&flagProblems, "problems", nil, "Only these problem numbers")
	crawlCmd.Flags().StringVar(&flagOut, "out", "", "Checkpoint location (default: checkpoints/<competition>-<from>-<to>.json)")
	crawlCmd.Flags().BoolVar(&flagClassify, "classify", false, "Label topics with Gemini before writing the checkpoint")
	crawlCmd.Flags().DurationVar(&flagDelay, "delay", defaults.Delay, "Minimum delay between page loads")
	crawlCmd.Flags().IntVar(&flagRetries, "retries", defaults.MaxRetries, "Retries per page for transient failures")
	addCheckpointFlags(crawlCmd)
	addMetricsFlag(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	comp, err := competitions.Lookup(args[0])
	if err != nil {
		return err
	}
	if flagFrom > 0 && flagTo > 0 && flagFrom > flagTo {
		return fmt.Errorf("--from %d is after --to %d", flagFrom, flagTo)
	}

	location := flagOut
	if location == "" {
		location = checkpoint.DefaultKey(comp.ID, flagFrom, flagTo)
		if flagS3Bucket == "" {
			location = filepath.Join("checkpoints", location)
		}
	}
	storage, key, err := openCheckpoint(ctx, location)
	if err != nil {
		return err
	}

	config := mathwiki.DefaultConfig()
	config.Delay = flagDelay
	config.MaxRetries = flagRetries

	m, stopMetrics := startMetrics(logger)
	defer stopMetrics()
	var ds *models.Dataset
	err = mathwiki.WithScraper(ctx, config, mathwiki.Deps{Logger: logger, Metrics: m}, func(ctx context.Context, s *mathwiki.Scraper) error {
		var err error
		ds, err = s.Crawl(ctx, comp, mathwiki.CrawlOptions{
			FromYear: flagFrom,
			ToYear:   flagTo,
			Problems: flagProblems,
		})
		return err
	})
	if err != nil && !(errors.Is(err, context.Canceled) && ds != nil) {
		return err
	}
	if err != nil {
		// Keep what was scraped before the interrupt
		logger.Warn("crawl interrupted, writing partial checkpoint")
		ctx = context.WithoutCancel(ctx)
	}

	if flagClassify {
		report, err := enrich(ctx, ds, logger, m)
		if err != nil {
			return err
		}
		logger.Info("topics assigned", zap.Int("problems", report.Problems), zap.Int("fallbacks", report.Fallbacks))
	}

	written, err := checkpoint.Save(ctx, storage, key, ds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checkpoint: %s\n", written)
	printSummary(out, models.Summarize(ds))
	return nil
}
