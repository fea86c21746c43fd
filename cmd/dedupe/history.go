package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent deduplication runs",
	Long:  `Display recent runs from the history database, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Run History ==="))
		if len(runs) == 0 {
			fmt.Printf("  %s\n\n", gray("No runs recorded"))
			return nil
		}

		for _, run := range runs {
			r := run.Report
			fmt.Printf("  %s  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"), run.ID)
			fmt.Printf("    %d in, %d removed (%.1f%%), %d clusters, %v\n",
				r.InputCount, r.DuplicateCount, r.DeduplicationRate*100,
				r.ClusterCount, r.Duration.Round(time.Millisecond))
		}
		fmt.Printf("\n  %s\n\n", gray("Run 'dedupe inspect <run-id>' for details"))
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Show one run in detail",
	Long:  `Display a recorded run's configuration, report, per-domain breakdown, sample pairs, and event stream.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		r := run.Report
		fmt.Printf("\n%s\n\n", cyan("=== Run "+run.ID+" ==="))
		fmt.Printf("  Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Finished:   %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Config:     %s\n", run.Config)
		fmt.Printf("  Input:      %d documents\n", r.InputCount)
		fmt.Printf("  Kept:       %d\n", r.KeptCount)
		fmt.Printf("  Removed:    %d (%.1f%%)\n", r.DuplicateCount, r.DeduplicationRate*100)
		fmt.Printf("  Clusters:   %d\n", r.ClusterCount)
		fmt.Printf("  Candidates: %d proposed, %d confirmed\n", r.CandidateCount, r.ConfirmedCount)
		if r.OverflowSkips > 0 {
			fmt.Printf("  %s %d bucket-cap exclusions\n", yellow("⚠"), r.OverflowSkips)
		}

		if len(r.PerDomain) > 0 {
			domains := make([]string, 0, len(r.PerDomain))
			for domain := range r.PerDomain {
				domains = append(domains, domain)
			}
			sort.Strings(domains)
			fmt.Printf("\n  %s\n", yellow("Per domain:"))
			for _, domain := range domains {
				dr := r.PerDomain[domain]
				name := domain
				if name == "" {
					name = "(none)"
				}
				fmt.Printf("    %-12s %d in, %d removed (%.1f%%)\n",
					name, dr.InputCount, dr.RemovedCount, dr.Rate*100)
			}
		}

		if len(r.SamplePairs) > 0 {
			fmt.Printf("\n  %s\n", yellow("Sample pairs:"))
			for _, pair := range r.SamplePairs {
				fmt.Printf("    %d ↔ %d  similarity %.3f\n", pair.A, pair.B, pair.Similarity)
			}
		}

		eventList, err := store.GetRunEvents(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}
		if len(eventList) > 0 {
			fmt.Printf("\n  %s\n", yellow("Events:"))
			for _, e := range eventList {
				fmt.Printf("    %s  %s[%s] %s\n",
					e.Timestamp.Format("15:04:05"), e.Type, gray(string(e.Severity)), e.Message)
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(inspectCmd)
}
