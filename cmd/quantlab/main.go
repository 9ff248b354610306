package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/config"
	"github.com/nicsoto/quantlab/internal/strategy"
	"github.com/nicsoto/quantlab/internal/strategy/macross"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "quantlab",
	Short: "quantlab - backtesting and strategy robustness toolkit",
	Long: `quantlab runs trading strategies against historical OHLCV data and
stress-tests the results with Monte Carlo reshuffling and walk-forward
optimization.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig returns the file config when one was given, defaults otherwise.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	log.Debug("no config file specified, using defaults")
	return config.Defaults(), nil
}

// newRegistry builds the strategy registry with every built-in strategy
// registered.
func newRegistry(log *zap.Logger) *strategy.Registry {
	reg := strategy.NewRegistry(log)
	reg.Register("macross_sma", macross.NewFactory(macross.TypeSMA))
	reg.Register("macross_ema", macross.NewFactory(macross.TypeEMA))
	return reg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
