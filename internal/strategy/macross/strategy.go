// Package macross implements a moving-average crossover strategy: enter long
// when the fast MA crosses above the slow MA, exit when it crosses back
// below.
package macross

import (
	"fmt"
	"math"

	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/indicator"
	"github.com/nicsoto/quantlab/internal/strategy"
)

// Supported moving-average types
const (
	TypeSMA = "sma"
	TypeEMA = "ema"
)

// Strategy is a fast/slow moving-average crossover
type Strategy struct {
	fastPeriod int
	slowPeriod int
	maType     string
}

// New validates periods and builds the strategy. The fast period must be
// strictly shorter than the slow period.
func New(fastPeriod, slowPeriod int, maType string) (*Strategy, error) {
	if fastPeriod < 1 {
		return nil, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("fast_period must be >= 1, got %d", fastPeriod))
	}
	if fastPeriod >= slowPeriod {
		return nil, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("fast_period (%d) must be < slow_period (%d)", fastPeriod, slowPeriod))
	}
	if maType != TypeSMA && maType != TypeEMA {
		return nil, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("ma_type must be %q or %q, got %q", TypeSMA, TypeEMA, maType))
	}
	return &Strategy{fastPeriod: fastPeriod, slowPeriod: slowPeriod, maType: maType}, nil
}

// NewFactory returns a strategy.Factory for the walk-forward optimizer and
// the CLI. Expected params: fast_period, slow_period.
func NewFactory(maType string) strategy.Factory {
	return func(params map[string]float64) (strategy.Strategy, error) {
		fast := int(math.Round(params["fast_period"]))
		slow := int(math.Round(params["slow_period"]))
		return New(fast, slow, maType)
	}
}

func (s *Strategy) Name() string {
	return fmt.Sprintf("macross_%s_%d_%d", s.maType, s.fastPeriod, s.slowPeriod)
}

func (s *Strategy) Params() map[string]float64 {
	return map[string]float64{
		"fast_period": float64(s.fastPeriod),
		"slow_period": float64(s.slowPeriod),
	}
}

// GenerateSignals emits an entry on each upward fast/slow cross and an exit
// on each downward cross, aligned 1:1 with the input bars.
func (s *Strategy) GenerateSignals(bars []core.Bar) (*strategy.SignalResult, error) {
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("prices series is empty"))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ma := indicator.SMA
	if s.maType == TypeEMA {
		ma = indicator.EMA
	}
	fastMA := ma(closes, s.fastPeriod)
	slowMA := ma(closes, s.slowPeriod)

	signals := make([]core.Signal, len(bars))
	prevAbove, prevBelow := false, false
	for i := range bars {
		// NaN warmup values compare false on both sides
		above := fastMA[i] > slowMA[i]
		below := fastMA[i] < slowMA[i]

		signals[i] = core.Signal{
			Time:  bars[i].Time,
			Entry: above && !prevAbove,
			Exit:  below && !prevBelow,
		}
		prevAbove, prevBelow = above, below
	}

	return &strategy.SignalResult{
		Signals: signals,
		Features: map[string][]float64{
			fmt.Sprintf("ma_fast_%d", s.fastPeriod): fastMA,
			fmt.Sprintf("ma_slow_%d", s.slowPeriod): slowMA,
		},
	}, nil
}
