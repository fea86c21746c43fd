package main

import (
	"fmt"
	"math"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the engine configuration",
	Long: `Resolve the engine configuration from --config or DEDUPE_* environment
variables, validate it, and print the result along with the LSH
sensitivity midpoint implied by the band geometry.`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Configuration is valid\n", green("✓"))
		fmt.Printf("  %s\n", cfg)

		// The similarity at which a pair has a 50% chance of becoming a
		// candidate: (1/b)^(1/r)
		midpoint := math.Pow(1.0/float64(cfg.Bands), 1.0/float64(cfg.Rows))
		fmt.Printf("  %s\n", gray(fmt.Sprintf(
			"LSH midpoint %.3f for threshold %.2f (%d bands × %d rows)",
			midpoint, cfg.SimilarityThreshold, cfg.Bands, cfg.Rows)))
		if midpoint > cfg.SimilarityThreshold {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("  %s midpoint above threshold: pairs near %.2f will often be missed\n",
				yellow("⚠"), cfg.SimilarityThreshold)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}
