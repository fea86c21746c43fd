package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yunmindata/dedupe/internal/engine"
	"github.com/yunmindata/dedupe/internal/events"
	"github.com/yunmindata/dedupe/internal/ingest"
	"github.com/yunmindata/dedupe/internal/output"
	"github.com/yunmindata/dedupe/internal/storage/sqlite"
)

var (
	runInput      string
	runOutput     string
	runReportPath string
	runWorkers    int
	runThreshold  float64
	runNoHistory  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deduplicate a JSONL corpus",
	Long: `Run deduplication over a JSONL corpus and write the kept documents.

Each input line is a JSON object with a "text" field and optional
"source", "lang", and "domain" fields. Lines that fail to parse or
lack text are counted and skipped. Kept documents are written as JSONL
to --output; the run summary goes to --report as JSON. Both files
appear atomically when the run completes.

Example:
  dedupe run --input corpus.jsonl --output kept.jsonl --report report.json
  cat corpus.jsonl | dedupe run --input - --output kept.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = runWorkers
		}
		if cmd.Flags().Changed("threshold") {
			cfg.SimilarityThreshold = runThreshold
		}

		var in io.Reader
		if runInput == "-" {
			in = os.Stdin
		} else {
			f, err := os.Open(runInput)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			in = f
		}
		source := ingest.NewJSONLSource(in)

		var sink events.Sink = events.LogSink{}
		if !runNoHistory {
			sink = store
		}
		eng, err := engine.New(cfg, engine.WithEventSink(sink))
		if err != nil {
			return err
		}

		ctx := context.Background()
		startedAt := time.Now()
		result, err := eng.Run(ctx, source)
		if err != nil {
			return err
		}

		writer, err := output.NewKeptWriter(runOutput)
		if err != nil {
			return err
		}
		for _, doc := range result.KeptDocuments() {
			if err := writer.Write(doc); err != nil {
				writer.Abort()
				return fmt.Errorf("failed to write kept document: %w", err)
			}
		}
		if err := writer.Commit(); err != nil {
			return fmt.Errorf("failed to commit output: %w", err)
		}

		if runReportPath != "" {
			if err := output.WriteReport(runReportPath, result.Report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}

		if !runNoHistory {
			record := &sqlite.RunRecord{
				ID:         result.Report.RunID,
				StartedAt:  startedAt,
				FinishedAt: time.Now(),
				Config:     cfg,
				Report:     result.Report,
			}
			if err := store.SaveRun(ctx, record); err != nil {
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Fprintf(os.Stderr, "%s failed to record run history: %v\n", yellow("⚠"), err)
			}
		}

		printRunSummary(result, source.Rejected())
		return nil
	},
}

func printRunSummary(result *engine.Result, rejected int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	r := result.Report
	fmt.Printf("\n%s\n\n", cyan("=== Deduplication Run ==="))
	fmt.Printf("  %s Run %s complete in %v\n", green("✓"), r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Printf("  Input:      %d documents\n", r.InputCount)
	fmt.Printf("  Kept:       %d\n", r.KeptCount)
	fmt.Printf("  Removed:    %d (%.1f%%)\n", r.DuplicateCount, r.DeduplicationRate*100)
	fmt.Printf("  Clusters:   %d\n", r.ClusterCount)
	fmt.Printf("  Candidates: %d proposed, %d confirmed\n", r.CandidateCount, r.ConfirmedCount)
	if rejected > 0 {
		fmt.Printf("  %s %d input lines rejected\n", yellow("⚠"), rejected)
	}
	if r.OverflowSkips > 0 {
		fmt.Printf("  %s %d bucket-cap exclusions\n", yellow("⚠"), r.OverflowSkips)
	}
	domains := make([]string, 0, len(r.PerDomain))
	for domain := range r.PerDomain {
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	if len(domains) > 0 {
		sort.Strings(domains)
		if dr, ok := r.PerDomain[""]; ok && dr.InputCount > 0 {
			domains = append(domains, "")
		}
		fmt.Printf("\n  %s\n", yellow("Per domain:"))
		for _, domain := range domains {
			dr := r.PerDomain[domain]
			name := domain
			if name == "" {
				name = gray("(none)")
			}
			fmt.Printf("    %-12s %d in, %d removed (%.1f%%)\n",
				name, dr.InputCount, dr.RemovedCount, dr.Rate*100)
		}
	}
	fmt.Println()
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input JSONL file, or - for stdin (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output JSONL file for kept documents (required)")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "write the run report JSON to this path")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "worker pool size (0 = all CPUs)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0.8, "similarity threshold")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "skip recording this run in the history database")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(runCmd)
}
