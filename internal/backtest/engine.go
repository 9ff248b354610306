package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/logger"
	"github.com/nicsoto/quantlab/internal/stats"
)

// Engine simulates signal-driven order execution over a historical price
// series. Stateless between Run calls: all simulation state is local to one
// invocation, so a single Engine is safe to reuse concurrently.
type Engine struct {
	initialCapital float64
	costs          Costs
	log            *zap.Logger
}

// NewEngine creates a backtest engine. initialCapital must be positive.
func NewEngine(initialCapital float64, costs Costs, log *zap.Logger) (*Engine, error) {
	if initialCapital <= 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("initial_capital must be > 0, got %v", initialCapital))
	}
	return &Engine{
		initialCapital: initialCapital,
		costs:          costs,
		log:            logger.OrNop(log),
	}, nil
}

// RunOptions controls one simulation run.
type RunOptions struct {
	// ExecutionDelay shifts signals forward this many bars before they become
	// actionable. 1 means a signal computed on bar t fills at the open of
	// bar t+1.
	ExecutionDelay int
	// SizePct is the fraction of current capital committed per entry.
	SizePct float64
	// StopLossPct exits when price falls this fraction below the entry fill.
	StopLossPct optional.Option[float64]
	// TakeProfitPct exits when price rises this fraction above the entry fill.
	TakeProfitPct optional.Option[float64]
}

// DefaultRunOptions returns the standard t -> t+1 full-capital configuration.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		ExecutionDelay: 1,
		SizePct:        1.0,
		StopLossPct:    optional.None[float64](),
		TakeProfitPct:  optional.None[float64](),
	}
}

// position is the engine's single open long position
type position struct {
	entryTime  time.Time
	entryPrice float64 // cost-adjusted fill
	size       float64
	slPrice    float64 // 0 when unset
	tpPrice    float64 // 0 when unset
}

// Run executes a backtest of the given signals over the given prices.
//
// Prices and signals are inner-joined on timestamp before processing; bars
// present in only one series are dropped. Signals are shifted forward by
// opts.ExecutionDelay bars and fill at the open of the bar where the shifted
// signal becomes true. The position model is long-only, flat or one position,
// sized at opts.SizePct of current capital.
func (e *Engine) Run(prices []core.Bar, signals []core.Signal, opts RunOptions) (*Result, error) {
	if len(prices) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("prices series is empty"))
	}
	if len(signals) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("signals series is empty"))
	}
	if opts.ExecutionDelay < 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("execution_delay must be >= 0, got %d", opts.ExecutionDelay))
	}
	if opts.SizePct <= 0 || opts.SizePct > 1 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("size_pct must be between 0 and 1, got %v", opts.SizePct))
	}
	if opts.StopLossPct.IsSome() && opts.StopLossPct.Unwrap() <= 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("sl_pct must be > 0, got %v", opts.StopLossPct.Unwrap()))
	}
	if opts.TakeProfitPct.IsSome() && opts.TakeProfitPct.Unwrap() <= 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("tp_pct must be > 0, got %v", opts.TakeProfitPct.Unwrap()))
	}

	bars, aligned := alignSeries(prices, signals)
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("prices and signals share no timestamps"))
	}

	runID := uuid.NewString()
	e.log.Debug("starting backtest run",
		zap.String("run_id", runID),
		zap.Int("bars", len(bars)),
		zap.Int("execution_delay", opts.ExecutionDelay),
	)

	cash := e.initialCapital
	var pos *position
	var trades []Trade
	equity := make([]EquityPoint, len(bars))

	for i, bar := range bars {
		// Shifted signal: the decision observed ExecutionDelay bars ago.
		// Leading bars carry no signal.
		var sig core.Signal
		if i >= opts.ExecutionDelay {
			sig = aligned[i-opts.ExecutionDelay]
		}

		closedThisBar := false

		if pos != nil {
			if exitPrice, reason, hit := pos.stopHit(bar); hit {
				cash += e.closePosition(pos, bar.Time, exitPrice, reason, &trades)
				pos = nil
				closedThisBar = true
			} else if sig.Exit {
				fill := e.costs.ApplyToPrice(bar.Open, false)
				cash += e.closePosition(pos, bar.Time, fill, ExitSignal, &trades)
				pos = nil
				closedThisBar = true
			}
		}

		// Entries are ignored while a position is open; a bar that closed a
		// position does not re-enter.
		if pos == nil && !closedThisBar && sig.Entry {
			fill := e.costs.ApplyToPrice(bar.Open, true)
			investment := cash * opts.SizePct
			pos = &position{
				entryTime:  bar.Time,
				entryPrice: fill,
				size:       investment / fill,
			}
			if opts.StopLossPct.IsSome() {
				pos.slPrice = fill * (1 - opts.StopLossPct.Unwrap())
			}
			if opts.TakeProfitPct.IsSome() {
				pos.tpPrice = fill * (1 + opts.TakeProfitPct.Unwrap())
			}
			cash -= investment

			// A stop can already be breached within the entry bar
			if exitPrice, reason, hit := pos.stopHit(bar); hit {
				cash += e.closePosition(pos, bar.Time, exitPrice, reason, &trades)
				pos = nil
			}
		}

		value := cash
		if pos != nil {
			value += pos.size * bar.Close
		}
		equity[i] = EquityPoint{Time: bar.Time, Value: value}
	}

	// Liquidate any terminal open position at the last close so the ledger
	// only holds completed round trips
	if pos != nil {
		last := bars[len(bars)-1]
		fill := e.costs.ApplyToPrice(last.Close, false)
		cash += e.closePosition(pos, last.Time, fill, ExitEndOfData, &trades)
		pos = nil
		equity[len(equity)-1] = EquityPoint{Time: last.Time, Value: cash}
	}

	result := &Result{
		ID:     runID,
		Trades: trades,
		Equity: equity,
		Stats:  e.summarize(trades, equity, opts),
	}

	e.log.Info("backtest run complete",
		zap.String("run_id", runID),
		zap.Int("num_trades", result.Stats.NumTrades),
		zap.Float64("total_return_pct", result.Stats.TotalReturnPct),
		zap.Float64("sharpe_ratio", result.Stats.SharpeRatio),
	)

	return result, nil
}

// stopHit checks the position's stop-loss and take-profit thresholds against
// the bar's intrabar range. Stop-loss is evaluated first: when both thresholds
// fall inside one bar the loss-limiting exit wins.
func (p *position) stopHit(bar core.Bar) (float64, ExitReason, bool) {
	if p.slPrice > 0 && bar.Low <= p.slPrice {
		return p.slPrice, ExitStopLoss, true
	}
	if p.tpPrice > 0 && bar.High >= p.tpPrice {
		return p.tpPrice, ExitTakeProfit, true
	}
	return 0, "", false
}

// closePosition records the round trip and returns the sale proceeds.
// exitPrice for stop fills is the threshold itself; the cost model is applied
// here for those fills.
func (e *Engine) closePosition(pos *position, exitTime time.Time, exitPrice float64, reason ExitReason, trades *[]Trade) float64 {
	fill := exitPrice
	if reason == ExitStopLoss || reason == ExitTakeProfit {
		fill = e.costs.ApplyToPrice(exitPrice, false)
	}

	pnl := pos.size * (fill - pos.entryPrice)
	trade := Trade{
		EntryTime:  pos.entryTime,
		ExitTime:   exitTime,
		EntryPrice: pos.entryPrice,
		ExitPrice:  fill,
		Size:       pos.size,
		PnL:        pnl,
		ReturnPct:  (fill/pos.entryPrice - 1) * 100,
		ExitReason: reason,
	}
	*trades = append(*trades, trade)

	e.log.Debug("closed position",
		zap.Time("entry_time", trade.EntryTime),
		zap.Time("exit_time", trade.ExitTime),
		zap.Float64("pnl", trade.PnL),
		zap.String("exit_reason", string(reason)),
	)

	return pos.size * fill
}

// summarize computes the stats block from the trade ledger and equity curve.
// With no trades every metric is zero.
func (e *Engine) summarize(trades []Trade, equity []EquityPoint, opts RunOptions) Stats {
	s := Stats{
		NumTrades:     len(trades),
		StopLossPct:   opts.StopLossPct,
		TakeProfitPct: opts.TakeProfitPct,
	}
	if len(equity) == 0 {
		return s
	}

	times := make([]time.Time, len(equity))
	values := make([]float64, len(equity))
	for i, p := range equity {
		times[i] = p.Time
		values[i] = p.Value
	}
	periodsPerYear := stats.InferPeriodsPerYear(times)

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}

	if values[0] > 0 {
		s.TotalReturnPct = (values[len(values)-1]/values[0] - 1) * 100
	}
	s.SharpeRatio = stats.Sharpe(returns, 0, periodsPerYear)
	s.SortinoRatio = stats.Sortino(returns, 0, periodsPerYear)
	s.MaxDrawdownPct = stats.MaxDrawdown(values)

	if len(trades) > 0 {
		pnls := make([]float64, len(trades))
		var sumReturn float64
		for i, t := range trades {
			pnls[i] = t.PnL
			sumReturn += t.ReturnPct
		}
		s.WinRatePct = stats.WinRate(pnls)
		s.ProfitFactor = stats.ProfitFactor(pnls)
		s.AvgTradePct = sumReturn / float64(len(trades))
	}

	return s
}

// alignSeries inner-joins prices and signals on timestamp. Both inputs are
// ordered by time, so a merge pass suffices.
func alignSeries(prices []core.Bar, signals []core.Signal) ([]core.Bar, []core.Signal) {
	var bars []core.Bar
	var aligned []core.Signal

	i, j := 0, 0
	for i < len(prices) && j < len(signals) {
		switch {
		case prices[i].Time.Equal(signals[j].Time):
			bars = append(bars, prices[i])
			aligned = append(aligned, signals[j])
			i++
			j++
		case prices[i].Time.Before(signals[j].Time):
			i++
		default:
			j++
		}
	}

	return bars, aligned
}
