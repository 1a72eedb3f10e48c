package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/jobmail/internal/bootstrap"
	"github.com/cuongbtq/jobmail/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion batch",
	Long:  "Fetches the most recent messages from the configured mail source, classifies them and stores the relevant opportunities.",
	RunE:  runIngest,
}

var (
	ingestLimit int
	ingestJSON  bool
)

func init() {
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 0, "Maximum messages to fetch (0 uses worker.batch_limit)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print the run report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	if err := cfg.ValidateIngestConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()
	if cfg.Worker.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Worker.RunTimeout)
		defer cancel()
	}

	store, _, err := bootstrap.Store(ctx, cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close(context.Background())

	ingestor, cleanup, err := bootstrap.Ingestor(ctx, cfg, store, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestion pipeline: %w", err)
	}
	defer cleanup()

	report, err := ingestor.Run(ctx, ingestLimit)
	if err != nil {
		return fmt.Errorf("ingestion run failed: %w", err)
	}

	if ingestJSON {
		return printJSON(cmd.OutOrStdout(), report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

// printReport writes one line per message followed by outcome totals
func printReport(w io.Writer, report *pipeline.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tJOB ID\tSUBJECT\tREASON")
	for _, res := range report.Results {
		reason := res.Reason
		if reason == "" && res.Err != nil {
			reason = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Outcome, dash(res.JobID), res.Subject, reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d fetched, %d persisted, %d irrelevant, %d incomplete, %d failed in %s\n",
		len(report.Results),
		report.Count(pipeline.OutcomePersisted),
		report.Count(pipeline.OutcomeSkippedIrrelevant),
		report.Count(pipeline.OutcomeSkippedIncomplete),
		report.Count(pipeline.OutcomeFailed),
		report.Duration().Round(time.Millisecond),
	)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
