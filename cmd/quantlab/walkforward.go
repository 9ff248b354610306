package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicsoto/quantlab/internal/backtest"
	"github.com/nicsoto/quantlab/internal/data"
	"github.com/nicsoto/quantlab/internal/logger"
	"github.com/nicsoto/quantlab/internal/wfo"
)

var (
	wfData     string
	wfStrategy string
	wfFastMin  int
	wfFastMax  int
	wfSlowMin  int
	wfSlowMax  int
)

var walkforwardCmd = &cobra.Command{
	Use:   "walkforward",
	Short: "Walk-forward optimize a strategy and check for overfitting",
	Long: `Split history into sequential train/test folds, tune strategy parameters
on each training window and score the winners out-of-sample. Reports
aggregate out-of-sample performance, parameter stability and an
overfitting verdict.`,
	RunE: runWalkForward,
}

func init() {
	walkforwardCmd.Flags().StringVar(&wfData, "data", "", "OHLCV CSV file (required)")
	walkforwardCmd.Flags().StringVar(&wfStrategy, "strategy", "macross_sma", "Strategy name")
	walkforwardCmd.Flags().IntVar(&wfFastMin, "fast-min", 5, "Fast MA search lower bound")
	walkforwardCmd.Flags().IntVar(&wfFastMax, "fast-max", 30, "Fast MA search upper bound")
	walkforwardCmd.Flags().IntVar(&wfSlowMin, "slow-min", 20, "Slow MA search lower bound")
	walkforwardCmd.Flags().IntVar(&wfSlowMax, "slow-max", 100, "Slow MA search upper bound")

	walkforwardCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(walkforwardCmd)
}

func runWalkForward(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	bars, err := data.LoadBars(wfData)
	if err != nil {
		return fmt.Errorf("loading data: %w", err)
	}

	reg := newRegistry(log)
	factory, ok := reg.Get(wfStrategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q (available: %v)", wfStrategy, reg.Names())
	}

	costs, err := backtest.NewCosts(cfg.Costs.CommissionPct, cfg.Costs.SlippagePct)
	if err != nil {
		return err
	}
	opt, err := wfo.NewOptimizer(wfo.Config{
		NSplits:        cfg.WalkForward.NSplits,
		TrainPct:       cfg.WalkForward.TrainPct,
		NTrials:        cfg.WalkForward.NTrials,
		Metric:         wfo.Metric(cfg.WalkForward.Metric),
		Seed:           cfg.WalkForward.Seed,
		InitialCapital: cfg.Backtest.InitialCapital,
		Costs:          costs,
		Thresholds: wfo.Thresholds{
			SharpeGap:         cfg.WalkForward.OverfitSharpeGap,
			StrongTrainSharpe: cfg.WalkForward.StrongTrainSharpe,
			WeakOOSSharpe:     cfg.WalkForward.WeakOOSSharpe,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("building optimizer: %w", err)
	}

	space := wfo.ParamSpace{
		"fast_period": {Low: float64(wfFastMin), High: float64(wfFastMax), Integer: true},
		"slow_period": {Low: float64(wfSlowMin), High: float64(wfSlowMax), Integer: true},
	}

	result, err := opt.Optimize(bars, factory, space)
	if err != nil {
		return fmt.Errorf("walk-forward: %w", err)
	}

	fmt.Println("=== Walk-Forward ===")
	fmt.Printf("Strategy: %s\n", wfStrategy)
	fmt.Printf("Folds:    %d, %d trials each, metric %s\n",
		len(result.Folds), cfg.WalkForward.NTrials, cfg.WalkForward.Metric)
	fmt.Println()
	for _, fold := range result.Folds {
		fmt.Printf("Fold %d  train %s..%s  test %s..%s\n",
			fold.Index+1,
			fold.TrainStart.Format("2006-01-02"), fold.TrainEnd.Format("2006-01-02"),
			fold.TestStart.Format("2006-01-02"), fold.TestEnd.Format("2006-01-02"))
		fmt.Printf("  params %v\n", fold.BestParams)
		fmt.Printf("  sharpe train %6.2f / test %6.2f   return train %6.2f%% / test %6.2f%%\n",
			fold.TrainSharpe, fold.TestSharpe, fold.TrainReturn*100, fold.TestReturn*100)
	}
	fmt.Println()
	fmt.Printf("OOS sharpe:       %6.2f\n", result.OOSSharpe)
	fmt.Printf("OOS return:       %6.2f%%\n", result.OOSReturn*100)
	fmt.Printf("Param stability:  %6.2f\n", result.ParamStability)
	if result.IsOverfit {
		fmt.Println("Verdict: LIKELY OVERFIT")
	} else {
		fmt.Println("Verdict: no overfitting detected")
	}

	return nil
}
