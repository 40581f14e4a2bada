// fit-es-loader parses Garmin FIT files, derives training zone labels and
// session load metrics, optionally enriches them with an Apple Health daily
// summary, and bulk loads the resulting documents into Elasticsearch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitsearch/pipeline/pkg/bootstrap"
	"github.com/fitsearch/pipeline/pkg/delivery"
	"github.com/fitsearch/pipeline/pkg/health"
	"github.com/fitsearch/pipeline/pkg/infrastructure/elastic"
	"github.com/fitsearch/pipeline/pkg/infrastructure/sentry"
	"github.com/fitsearch/pipeline/pkg/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := bootstrap.LoadConfig()
	var configFile string

	cmd := &cobra.Command{
		Use:   "fit-es-loader",
		Short: "Bulk load Garmin FIT files into Elasticsearch",
		Long: `fit-es-loader decodes .fit activity files, classifies each sample into
heart rate and power training zones, computes session training load metrics
(normalized power, intensity factor, TSS, HR drift), optionally joins an
Apple Health daily summary, and delivers the documents to Elasticsearch in
retried bulk chunks. Document ids are deterministic, so re-running over the
same files overwrites rather than duplicates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := cfg.ApplyFile(configFile); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory containing .fit files")
	flags.StringVar(&cfg.Index, "index", cfg.Index, "target Elasticsearch index")
	flags.StringVar(&cfg.ESHost, "es-host", cfg.ESHost, "Elasticsearch base URL (also ES_HOST env)")
	flags.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "documents per bulk request")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries per failed chunk")
	flags.Float64Var(&cfg.FTP, "ftp", cfg.FTP, "functional threshold power in watts")
	flags.StringVar(&cfg.HealthExport, "health-export", cfg.HealthExport, "Apple Health export.xml enabling watch enrichment")
	flags.StringVar(&cfg.FailureLog, "failure-log", cfg.FailureLog, "file receiving per-document failure records")
	flags.BoolVar(&cfg.SkipCreate, "skip-create", cfg.SkipCreate, "skip index creation and bulk tuning")
	flags.BoolVar(&cfg.SkipRestore, "skip-restore", cfg.SkipRestore, "skip restoring index settings after the run")
	flags.IntVar(&cfg.Parallelism, "parallelism", cfg.Parallelism, "sessions processed concurrently")
	flags.StringVar(&configFile, "config", "", "YAML config file overlaying defaults")
	cmd.MarkFlagRequired("data-dir")

	return cmd
}

func run(ctx context.Context, cfg *bootstrap.Config) error {
	logger := bootstrap.NewLogger("fit-es-loader")

	if err := sentry.Init(sentry.FromEnv(), logger); err != nil {
		logger.Warn("sentry init failed, continuing without error tracking", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var enricher *health.Enricher
	if cfg.HealthExport != "" {
		lookup, err := health.ParseAppleExport(cfg.HealthExport)
		if err != nil {
			return fmt.Errorf("load health export: %w", err)
		}
		enricher = health.NewEnricher(lookup, cfg.Recovery)
		logger.Info("health enrichment enabled", "days", len(lookup))
	}

	var recorder delivery.FailureRecorder
	if cfg.FailureLog != "" {
		failureLog, err := delivery.OpenFailureLog(cfg.FailureLog)
		if err != nil {
			return err
		}
		defer failureLog.Close()
		recorder = failureLog
	}

	store := elastic.NewClient(cfg.ESHost)
	runner := pipeline.NewRunner(cfg, store, enricher, recorder, logger)

	summary, err := runner.Run(ctx)
	if err != nil {
		sentry.CaptureException(err, map[string]interface{}{"index": cfg.Index}, logger)
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(out))

	if summary.Failed > 0 {
		logger.Warn("run completed with failures",
			"failed", summary.Failed,
			"failure_log", cfg.FailureLog,
		)
		return fmt.Errorf("%d of %d documents failed to index", summary.Failed, summary.Submitted)
	}
	return nil
}
