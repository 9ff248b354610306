package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicsoto/quantlab/internal/core"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(day int, o, h, l, c float64) core.Bar {
	return core.Bar{Time: day0.AddDate(0, 0, day), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func signalAt(bars []core.Bar, entries, exits []int) []core.Signal {
	entrySet := map[int]bool{}
	for _, i := range entries {
		entrySet[i] = true
	}
	exitSet := map[int]bool{}
	for _, i := range exits {
		exitSet[i] = true
	}
	signals := make([]core.Signal, len(bars))
	for i, b := range bars {
		signals[i] = core.Signal{Time: b.Time, Entry: entrySet[i], Exit: exitSet[i]}
	}
	return signals
}

func zeroCostEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(10000, Costs{}, nil)
	require.NoError(t, err)
	return e
}

func TestNewEngine_InvalidCapital(t *testing.T) {
	_, err := NewEngine(0, DefaultCosts(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = NewEngine(-100, DefaultCosts(), nil)
	require.Error(t, err)
}

func TestEngine_Run_EmptyInputs(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{bar(0, 100, 101, 99, 100)}
	signals := signalAt(bars, nil, nil)

	_, err := e.Run(nil, signals, DefaultRunOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = e.Run(bars, nil, DefaultRunOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestEngine_Run_NoCommonTimestamps(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{bar(0, 100, 101, 99, 100)}
	signals := []core.Signal{{Time: day0.AddDate(1, 0, 0)}}

	_, err := e.Run(bars, signals, DefaultRunOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestEngine_Run_FillsAtNextOpen(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
		bar(3, 106, 107, 105, 106),
		bar(4, 108, 109, 107, 108),
	}
	// Entry observed on bar 1, exit observed on bar 2
	signals := signalAt(bars, []int{1}, []int{2})

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	// delay=1: the fill happens at the NEXT bar's open, never the signal
	// bar's open or close
	assert.InDelta(t, 104.0, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 106.0, trade.ExitPrice, 1e-9)
	assert.Equal(t, bars[2].Time, trade.EntryTime)
	assert.Equal(t, bars[3].Time, trade.ExitTime)
	assert.Equal(t, ExitSignal, trade.ExitReason)

	// size = 10000 / 104; pnl = size * 2
	assert.InDelta(t, 10000.0/104.0*2.0, trade.PnL, 1e-6)
}

func TestEngine_Run_CostsDegradeFills(t *testing.T) {
	costs, err := NewCosts(0.001, 0.0005)
	require.NoError(t, err)
	e, err := NewEngine(10000, costs, nil)
	require.NoError(t, err)

	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 100, 101, 99, 100),
		bar(2, 100, 101, 99, 100),
		bar(3, 100, 101, 99, 100),
	}
	signals := signalAt(bars, []int{0}, []int{1})

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	// Entry inflated, exit deflated by commission + slippage
	assert.InDelta(t, 100.15, result.Trades[0].EntryPrice, 1e-9)
	assert.InDelta(t, 99.85, result.Trades[0].ExitPrice, 1e-9)
	assert.Less(t, result.Trades[0].PnL, 0.0)
}

func TestEngine_Run_InnerJoin(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
		bar(3, 106, 107, 105, 106),
	}
	// Signals skip bar 1 and add a timestamp prices never saw; both are
	// excluded from the run
	signals := []core.Signal{
		{Time: bars[0].Time, Entry: true},
		{Time: bars[2].Time},
		{Time: bars[3].Time, Exit: true},
		{Time: day0.AddDate(0, 0, 30)},
	}

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)

	// Joined index: bars 0, 2, 3 only
	assert.Len(t, result.Equity, 3)
	require.Len(t, result.Trades, 1)
	// Entry at joined index 0 fills at joined index 1 = bar 2's open
	assert.InDelta(t, 104.0, result.Trades[0].EntryPrice, 1e-9)
}

func TestEngine_Run_EntryIgnoredWhileOpen(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
		bar(3, 106, 107, 105, 106),
		bar(4, 108, 109, 107, 108),
	}
	// Second entry arrives while the first position is still open
	signals := signalAt(bars, []int{0, 1, 2}, []int{3})

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)
	assert.Len(t, result.Trades, 1)
}

func TestEngine_Run_StopLoss(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 100, 100.5, 99.5, 100),
		bar(2, 99, 100, 98, 99),
		bar(3, 96, 97, 90, 95),
		bar(4, 95, 96, 94, 95),
	}
	signals := signalAt(bars, []int{0}, nil)

	opts := DefaultRunOptions()
	opts.StopLossPct = optional.Some(0.05)

	result, err := e.Run(bars, signals, opts)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	// Entry fill 100, SL threshold 95; bar 3's low of 90 breaches it and the
	// fill is the threshold price, not the low
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.InDelta(t, 95.0, trade.ExitPrice, 1e-9)
	assert.Equal(t, bars[3].Time, trade.ExitTime)
	assert.InDelta(t, -500.0, trade.PnL, 1e-6)
}

func TestEngine_Run_TakeProfit(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 100, 100.5, 99.5, 100),
		bar(2, 101, 103, 100, 102),
		bar(3, 104, 108, 103, 106),
		bar(4, 106, 107, 105, 106),
	}
	signals := signalAt(bars, []int{0}, nil)

	opts := DefaultRunOptions()
	opts.TakeProfitPct = optional.Some(0.05)

	result, err := e.Run(bars, signals, opts)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	// TP threshold 105; bar 3's high of 108 breaches it
	assert.Equal(t, ExitTakeProfit, trade.ExitReason)
	assert.InDelta(t, 105.0, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 500.0, trade.PnL, 1e-6)
}

func TestEngine_Run_StopPrecedesSignalExit(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 100, 100.5, 99.5, 100),
		bar(2, 99, 100, 98, 99),
		bar(3, 96, 97, 90, 95),
		bar(4, 95, 96, 94, 95),
	}
	// The shifted exit signal lands on bar 3, the same bar that breaches the
	// stop. The risk-control exit wins.
	signals := signalAt(bars, []int{0}, []int{2})

	opts := DefaultRunOptions()
	opts.StopLossPct = optional.Some(0.05)

	result, err := e.Run(bars, signals, opts)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitStopLoss, result.Trades[0].ExitReason)
	assert.InDelta(t, 95.0, result.Trades[0].ExitPrice, 1e-9)
}

func TestEngine_Run_NoTrades(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
	}
	signals := signalAt(bars, nil, nil)

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Len(t, result.Equity, 3)
	for _, p := range result.Equity {
		assert.InDelta(t, 10000.0, p.Value, 1e-9)
	}

	// Degenerate run: all-zero stats block, no NaN
	s := result.Stats
	assert.Zero(t, s.NumTrades)
	assert.Zero(t, s.TotalReturnPct)
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.WinRatePct)
	assert.Zero(t, s.ProfitFactor)
	assert.False(t, math.IsNaN(s.MaxDrawdownPct))
}

func TestEngine_Run_TerminalLiquidation(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
		bar(3, 106, 107, 105, 106),
	}
	signals := signalAt(bars, []int{0}, nil)

	result, err := e.Run(bars, signals, DefaultRunOptions())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, ExitEndOfData, trade.ExitReason)
	assert.InDelta(t, 106.0, trade.ExitPrice, 1e-9)
	assert.Equal(t, bars[3].Time, trade.ExitTime)

	// Final equity equals cash after liquidation
	final := result.Equity[len(result.Equity)-1].Value
	assert.InDelta(t, 10000.0/102.0*106.0, final, 1e-6)
}

func TestEngine_Run_StatsEchoStops(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 102, 103, 101, 102),
		bar(2, 104, 105, 103, 104),
	}
	signals := signalAt(bars, nil, nil)

	opts := DefaultRunOptions()
	opts.StopLossPct = optional.Some(0.02)
	opts.TakeProfitPct = optional.Some(0.07)

	result, err := e.Run(bars, signals, opts)
	require.NoError(t, err)
	assert.True(t, result.Stats.StopLossPct.IsSome())
	assert.InDelta(t, 0.02, result.Stats.StopLossPct.Unwrap(), 1e-12)
	assert.InDelta(t, 0.07, result.Stats.TakeProfitPct.Unwrap(), 1e-12)
}

func TestEngine_Run_InvalidOptions(t *testing.T) {
	e := zeroCostEngine(t)
	bars := []core.Bar{bar(0, 100, 101, 99, 100)}
	signals := signalAt(bars, nil, nil)

	opts := DefaultRunOptions()
	opts.ExecutionDelay = -1
	_, err := e.Run(bars, signals, opts)
	require.Error(t, err)

	opts = DefaultRunOptions()
	opts.SizePct = 0
	_, err = e.Run(bars, signals, opts)
	require.Error(t, err)

	opts = DefaultRunOptions()
	opts.StopLossPct = optional.Some(-0.1)
	_, err = e.Run(bars, signals, opts)
	require.Error(t, err)
}

func TestResult_Returns(t *testing.T) {
	r := &Result{Equity: []EquityPoint{
		{Time: day0, Value: 100},
		{Time: day0.AddDate(0, 0, 1), Value: 110},
		{Time: day0.AddDate(0, 0, 2), Value: 99},
	}}
	returns := r.Returns()
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
	assert.InDelta(t, -1.0, r.TotalReturn(), 1e-9)
}
