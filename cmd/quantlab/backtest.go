package main

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/backtest"
	"github.com/nicsoto/quantlab/internal/config"
	"github.com/nicsoto/quantlab/internal/data"
	"github.com/nicsoto/quantlab/internal/logger"
)

var (
	backtestData       string
	backtestStrategy   string
	backtestFast       int
	backtestSlow       int
	backtestStopLoss   float64
	backtestTakeProfit float64
	backtestTradesOut  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy backtest over a CSV price file",
	Long:  "Run a strategy against historical OHLCV data and show performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestData, "data", "", "OHLCV CSV file (required)")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "macross_sma", "Strategy name")
	backtestCmd.Flags().IntVar(&backtestFast, "fast", 10, "Fast MA period")
	backtestCmd.Flags().IntVar(&backtestSlow, "slow", 50, "Slow MA period")
	backtestCmd.Flags().Float64Var(&backtestStopLoss, "stop-loss", 0, "Stop loss as a fraction of entry (e.g. 0.05)")
	backtestCmd.Flags().Float64Var(&backtestTakeProfit, "take-profit", 0, "Take profit as a fraction of entry (e.g. 0.10)")
	backtestCmd.Flags().StringVar(&backtestTradesOut, "trades-out", "", "Write the trade ledger to this CSV file")

	backtestCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
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

	fmt.Println("=== Backtest ===")
	fmt.Printf("Strategy: %s\n", backtestStrategy)
	fmt.Printf("Data:     %s\n", backtestData)
	fmt.Println()
	printStats(result)

	if backtestTradesOut != "" {
		if err := data.WriteTrades(result.Trades, backtestTradesOut); err != nil {
			return fmt.Errorf("writing trades: %w", err)
		}
		log.Info("trade ledger written", zap.String("path", backtestTradesOut))
	}

	return nil
}

// runStrategyBacktest loads the price file, builds the selected strategy and
// executes one engine run. Shared by the backtest and montecarlo commands.
func runStrategyBacktest(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) (*backtest.Result, error) {
	bars, err := data.LoadBars(backtestData)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	log.Info("data loaded", zap.String("path", backtestData), zap.Int("bars", len(bars)))

	reg := newRegistry(log)
	strat, err := reg.Build(backtestStrategy, map[string]float64{
		"fast_period": float64(backtestFast),
		"slow_period": float64(backtestSlow),
	})
	if err != nil {
		return nil, fmt.Errorf("building strategy: %w", err)
	}

	sigResult, err := strat.GenerateSignals(bars)
	if err != nil {
		return nil, fmt.Errorf("generating signals: %w", err)
	}

	costs, err := backtest.NewCosts(cfg.Costs.CommissionPct, cfg.Costs.SlippagePct)
	if err != nil {
		return nil, err
	}
	engine, err := backtest.NewEngine(cfg.Backtest.InitialCapital, costs, log)
	if err != nil {
		return nil, err
	}

	opts := backtest.DefaultRunOptions()
	opts.ExecutionDelay = cfg.Backtest.ExecutionDelay
	opts.SizePct = cfg.Backtest.SizePct
	opts.StopLossPct, opts.TakeProfitPct = stopOptions(cmd)

	return engine.Run(bars, sigResult.Signals, opts)
}

func printStats(result *backtest.Result) {
	s := result.Stats
	fmt.Printf("Total return:  %8.2f%%\n", s.TotalReturnPct)
	fmt.Printf("Sharpe ratio:  %8.2f\n", s.SharpeRatio)
	fmt.Printf("Sortino ratio: %8.2f\n", s.SortinoRatio)
	fmt.Printf("Max drawdown:  %8.2f%%\n", s.MaxDrawdownPct)
	fmt.Printf("Win rate:      %8.2f%%\n", s.WinRatePct)
	fmt.Printf("Profit factor: %8.2f\n", s.ProfitFactor)
	fmt.Printf("Trades:        %8d\n", s.NumTrades)
	fmt.Printf("Avg trade:     %8.2f%%\n", s.AvgTradePct)
}

func stopOptions(cmd *cobra.Command) (sl, tp optional.Option[float64]) {
	sl = optional.None[float64]()
	tp = optional.None[float64]()
	if cmd.Flags().Changed("stop-loss") {
		sl = optional.Some(backtestStopLoss)
	}
	if cmd.Flags().Changed("take-profit") {
		tp = optional.Some(backtestTakeProfit)
	}
	return sl, tp
}
