package strategy

import (
	"github.com/nicsoto/quantlab/internal/core"
)

// SignalResult is the output of signal generation: one entry/exit pair per
// input bar, plus optional indicator series for analysis and debugging.
type SignalResult struct {
	Signals  []core.Signal
	Features map[string][]float64
}

// Strategy turns a price series into an aligned entry/exit signal series.
//
// Implementations must behave as pure functions of the price series for a
// given parameter set: same bars in, same signals out. The backtest engine
// and walk-forward optimizer rely on this for reproducibility.
type Strategy interface {
	Name() string
	Params() map[string]float64
	GenerateSignals(bars []core.Bar) (*SignalResult, error)
}

// Factory builds a strategy from a numeric parameter set. Invalid parameter
// combinations return an error; search loops convert that to a penalty score
// instead of aborting.
type Factory func(params map[string]float64) (Strategy, error)
