package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicsoto/quantlab/internal/logger"
	"github.com/nicsoto/quantlab/internal/montecarlo"
)

var (
	mcSims int
	mcSeed int64
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Stress-test a backtest with return reshuffling",
	Long: `Run a strategy backtest, then reshuffle its per-bar return series many
times to estimate the distribution of outcomes the strategy could have
produced under different return orderings.`,
	RunE: runMonteCarlo,
}

func init() {
	montecarloCmd.Flags().StringVar(&backtestData, "data", "", "OHLCV CSV file (required)")
	montecarloCmd.Flags().StringVar(&backtestStrategy, "strategy", "macross_sma", "Strategy name")
	montecarloCmd.Flags().IntVar(&backtestFast, "fast", 10, "Fast MA period")
	montecarloCmd.Flags().IntVar(&backtestSlow, "slow", 50, "Slow MA period")
	montecarloCmd.Flags().IntVar(&mcSims, "sims", 0, "Number of simulations (0 uses the configured default)")
	montecarloCmd.Flags().Int64Var(&mcSeed, "seed", -1, "RNG seed (-1 uses the configured default)")

	montecarloCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(montecarloCmd)
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result, err := runStrategyBacktest(cmd, cfg, log)
	if err != nil {
		return err
	}

	sims := cfg.MonteCarlo.NSimulations
	if mcSims > 0 {
		sims = mcSims
	}
	seed := cfg.MonteCarlo.Seed
	if mcSeed >= 0 {
		seed = mcSeed
	}

	sim := montecarlo.NewSimulator(sims, seed, log)
	mc, err := sim.Simulate(result.Returns(), cfg.Backtest.InitialCapital)
	if err != nil {
		return fmt.Errorf("monte carlo: %w", err)
	}

	fmt.Println("=== Monte Carlo ===")
	fmt.Printf("Strategy:     %s\n", backtestStrategy)
	fmt.Printf("Simulations:  %d (seed %d)\n", sims, seed)
	fmt.Println()
	fmt.Printf("Mean return:    %8.2f%%\n", mc.MeanFinalReturn*100)
	fmt.Printf("Median return:  %8.2f%%\n", mc.MedianFinalReturn*100)
	fmt.Printf("Std dev:        %8.2f%%\n", mc.StdFinalReturn*100)
	fmt.Printf("5th pctile:     %8.2f%%\n", mc.Percentile5*100)
	fmt.Printf("95th pctile:    %8.2f%%\n", mc.Percentile95*100)
	fmt.Printf("VaR 95:         %8.2f%%\n", mc.VaR95*100)
	fmt.Printf("CVaR 95:        %8.2f%%\n", mc.CVaR95*100)
	fmt.Printf("Mean max DD:    %8.2f%%\n", mc.MeanMaxDrawdown*100)
	fmt.Printf("Worst max DD:   %8.2f%%\n", mc.WorstMaxDrawdown*100)
	fmt.Printf("P(positive):    %8.2f%%\n", mc.ProbPositive*100)
	fmt.Printf("P(double):      %8.2f%%\n", mc.ProbDouble*100)
	fmt.Printf("P(-50%% loss):   %8.2f%%\n", mc.ProbLoss50*100)

	return nil
}
