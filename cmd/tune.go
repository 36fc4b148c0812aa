package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peekknuf/datatrust/internal/loader"
	"github.com/peekknuf/datatrust/internal/tuning"
)

var (
	targetsFile   string
	maxIterations int
	targetScore   int
	tuneSeed      uint64
	tuneOut       string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search thresholds that make datasets score as expected",
	Long: `Load a targets file listing datasets and the verdicts they should
receive, then randomly search the PCA anomaly and diversity thresholds
until every target is met or the iteration limit is reached.

The best thresholds are written to <out>/best_config.yaml and can be
passed back with --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		targets, err := tuning.LoadTargets(targetsFile)
		if err != nil {
			return err
		}

		cases := make([]tuning.Case, 0, len(targets))
		for _, t := range targets {
			res, err := loader.Load(ctx, t.Path)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
			cases = append(cases, tuning.Case{Target: t, Dataset: res.Dataset})
		}

		opts := []tuning.Option{
			tuning.WithBase(thresholds),
			tuning.WithMaxIterations(maxIterations),
			tuning.WithLogger(slog.Default()),
		}
		if targetScore > 0 {
			opts = append(opts, tuning.WithTargetScore(targetScore))
		}
		if cmd.Flags().Changed("seed") {
			opts = append(opts, tuning.WithSeed(tuneSeed))
		}

		res, err := tuning.New(cases, opts...).Run(ctx)
		if err != nil {
			return err
		}
		if err := tuning.WriteResults(tuneOut, res); err != nil {
			return err
		}

		fmt.Printf("Best score: %d/%d after %d iterations\n", res.BestScore, res.MaxScore, res.Iterations)
		fmt.Printf("- IQR multiplier (PCA): %.2f\n", res.Thresholds.IQRMultiplierPCA)
		fmt.Printf("- MAD threshold (PCA): %.2f\n", res.Thresholds.MADThresholdPCA)
		fmt.Printf("- Expected unique numeric: %d\n", res.Thresholds.ExpectedUniqueNumeric)
		if !res.Reached {
			slog.Warn("target score not reached", "best", res.BestScore, "target", res.MaxScore)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuneCmd)
	tuneCmd.Flags().StringVarP(&targetsFile, "targets", "t", "",
		"YAML file listing datasets and their expected results (required)")
	tuneCmd.Flags().IntVar(&maxIterations, "max-iterations", tuning.DefaultMaxIterations,
		"Maximum number of search iterations")
	tuneCmd.Flags().IntVar(&targetScore, "target-score", 0,
		"Stop once this many criteria are met (default is all of them)")
	tuneCmd.Flags().Uint64Var(&tuneSeed, "seed", 1,
		"Random seed for the search")
	tuneCmd.Flags().StringVar(&tuneOut, "out", "tuning",
		"Directory for best_config.yaml and the per dataset reports")

	tuneCmd.MarkFlagRequired("targets")
}
