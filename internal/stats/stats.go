// Package stats provides pure performance-metric functions over return,
// equity, and trade-pnl series. Every function resolves degenerate inputs
// (empty series, zero variance, no losses) to a documented fallback value
// instead of NaN or an error.
package stats

import (
	"math"
	"sort"
	"time"
)

// Sharpe computes the annualized Sharpe ratio of a per-period return series.
// rf is the annualized risk-free rate. Returns 0 for empty input or zero
// variance.
func Sharpe(returns []float64, rf float64, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	rfPerPeriod := rf / periodsPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfPerPeriod
	}

	sd := stdDev(excess)
	if sd == 0 {
		return 0
	}

	return sanitize(mean(excess) / sd * math.Sqrt(periodsPerYear))
}

// Sortino computes the annualized Sortino ratio, penalizing only downside
// deviation. Returns 0 when there is no downside volatility.
func Sortino(returns []float64, rf float64, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	rfPerPeriod := rf / periodsPerYear
	var sumExcess, sumSqDown float64
	for _, r := range returns {
		e := r - rfPerPeriod
		sumExcess += e
		if e < 0 {
			sumSqDown += e * e
		}
	}

	downside := math.Sqrt(sumSqDown / float64(len(returns)))
	if downside == 0 {
		return 0
	}

	meanExcess := sumExcess / float64(len(returns))
	return sanitize(meanExcess / downside * math.Sqrt(periodsPerYear))
}

// MaxDrawdown computes the maximum peak-to-trough decline of an equity curve
// as a negative percentage (e.g. -25.0). Returns 0 on empty input.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	var minDD float64
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak * 100
			if dd < minDD {
				minDD = dd
			}
		}
	}

	return sanitize(minDD)
}

// WinRate returns the percentage of trades with positive pnl. Returns 0 when
// there are no trades.
func WinRate(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}

	wins := 0
	for _, p := range pnl {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnl)) * 100
}

// ProfitFactor returns gross profit divided by gross loss. Returns +Inf when
// there are profits and no losses, 0 when there is neither.
func ProfitFactor(pnl []float64) float64 {
	var grossProfit, grossLoss float64
	for _, p := range pnl {
		if p > 0 {
			grossProfit += p
		} else if p < 0 {
			grossLoss += -p
		}
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// CAGR computes the compound annual growth rate of an equity curve as a
// percentage. Returns 0 for fewer than 2 points.
func CAGR(equity []float64, periodsPerYear float64) float64 {
	if len(equity) < 2 || periodsPerYear <= 0 || equity[0] <= 0 {
		return 0
	}

	totalReturn := equity[len(equity)-1] / equity[0]
	years := float64(len(equity)) / periodsPerYear
	if years <= 0 || totalReturn <= 0 {
		return 0
	}

	return sanitize((math.Pow(totalReturn, 1/years) - 1) * 100)
}

// PeriodsPerYear maps a bar interval to the approximate number of trading
// periods in a year (252 trading days, 6.5 market hours per day).
func PeriodsPerYear(interval time.Duration) float64 {
	switch {
	case interval <= 0:
		return 252
	case interval <= time.Minute:
		return 252 * 6.5 * 60
	case interval <= 5*time.Minute:
		return 252 * 6.5 * 12
	case interval <= 15*time.Minute:
		return 252 * 6.5 * 4
	case interval <= 30*time.Minute:
		return 252 * 6.5 * 2
	case interval <= time.Hour:
		return 252 * 6.5
	case interval <= 36*time.Hour:
		return 252
	case interval <= 10*24*time.Hour:
		return 52
	default:
		return 12
	}
}

// InferPeriodsPerYear derives the annualization factor from the median
// timestamp delta of a series. Falls back to daily for fewer than 2 points.
func InferPeriodsPerYear(times []time.Time) float64 {
	if len(times) < 2 {
		return 252
	}

	deltas := make([]time.Duration, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		deltas = append(deltas, times[i].Sub(times[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })

	return PeriodsPerYear(deltas[len(deltas)/2])
}

// Percentile computes the p-th percentile (0-100) of values using linear
// interpolation between closest ranks. Returns 0 on empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return mean(values)
}

// Std returns the population standard deviation, 0 for empty input.
func Std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Median returns the middle value, 0 for empty input.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// sanitize converts NaN to 0 so metric values never propagate NaN.
func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
