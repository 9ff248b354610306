package backtest

import (
	"time"

	"github.com/moznion/go-optional"
)

// ExitReason records what closed a position
type ExitReason string

const (
	ExitSignal     ExitReason = "signal"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitEndOfData  ExitReason = "end_of_data"
)

// Trade represents one completed round trip. Immutable once created.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	PnL        float64
	ReturnPct  float64
	ExitReason ExitReason
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Duration returns the holding period of the trade
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// EquityPoint is one mark-to-market sample of portfolio value
type EquityPoint struct {
	Time  time.Time
	Value float64
}

// Stats holds the standardized performance summary of one run.
// A run with no trades reports an all-zero block, never NaN.
type Stats struct {
	TotalReturnPct float64
	SharpeRatio    float64
	SortinoRatio   float64
	MaxDrawdownPct float64
	WinRatePct     float64
	ProfitFactor   float64
	NumTrades      int
	AvgTradePct    float64
	StopLossPct    optional.Option[float64]
	TakeProfitPct  optional.Option[float64]
}

// Result holds the complete output of one engine run: trade ledger, equity
// curve (one point per input bar) and stats. Owned by the caller; never
// shared across runs.
type Result struct {
	ID     string
	Trades []Trade
	Equity []EquityPoint
	Stats  Stats
}

// TotalReturn is the equity-curve return as a percentage
func (r *Result) TotalReturn() float64 {
	if len(r.Equity) == 0 || r.Equity[0].Value == 0 {
		return 0
	}
	return (r.Equity[len(r.Equity)-1].Value/r.Equity[0].Value - 1) * 100
}

// EquityValues returns the raw equity series
func (r *Result) EquityValues() []float64 {
	values := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		values[i] = p.Value
	}
	return values
}

// Returns derives the per-bar return series from the equity curve, the input
// expected by the Monte Carlo simulator.
func (r *Result) Returns() []float64 {
	if len(r.Equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(r.Equity)-1)
	for i := 1; i < len(r.Equity); i++ {
		prev := r.Equity[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, r.Equity[i].Value/prev-1)
	}
	return returns
}

// PnLs extracts the per-trade pnl series
func (r *Result) PnLs() []float64 {
	pnls := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		pnls[i] = t.PnL
	}
	return pnls
}
