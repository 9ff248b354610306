package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSharpe_ZeroVariance(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, Sharpe(returns, 0, 252))
}

func TestSharpe_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(nil, 0, 252))
	assert.Equal(t, 0.0, Sharpe([]float64{0.01}, 0, 252))
}

func TestSharpe_PositiveReturns(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.005, 0.015, 0.01, -0.002}
	got := Sharpe(returns, 0, 252)
	assert.Greater(t, got, 0.0)
	assert.False(t, math.IsNaN(got))
}

func TestSortino_NoDownside(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.005, 0.015}
	assert.Equal(t, 0.0, Sortino(returns, 0, 252))
}

func TestSortino_PenalizesDownside(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.01, 0.02, 0.005}
	got := Sortino(returns, 0, 252)
	assert.False(t, math.IsNaN(got))
	assert.NotEqual(t, 0.0, got)
}

func TestMaxDrawdown_Monotonic(t *testing.T) {
	equity := []float64{100, 110, 120, 130}
	assert.Equal(t, 0.0, MaxDrawdown(equity))
}

func TestMaxDrawdown_Known(t *testing.T) {
	// Peak 120, trough 90: (90-120)/120*100 = -25
	equity := []float64{100, 120, 90, 110}
	assert.InDelta(t, -25.0, MaxDrawdown(equity), 1e-9)
}

func TestMaxDrawdown_Empty(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(nil))
	assert.InDelta(t, 50.0, WinRate([]float64{10, -5, 20, -1}), 1e-9)
	assert.InDelta(t, 100.0, WinRate([]float64{1, 2, 3}), 1e-9)
}

func TestProfitFactor(t *testing.T) {
	assert.Equal(t, 0.0, ProfitFactor(nil))
	assert.InDelta(t, 2.0, ProfitFactor([]float64{20, -10}), 1e-9)
	assert.True(t, math.IsInf(ProfitFactor([]float64{5, 10}), 1))
	assert.Equal(t, 0.0, ProfitFactor([]float64{0, 0}))
}

func TestCAGR(t *testing.T) {
	assert.Equal(t, 0.0, CAGR([]float64{100}, 252))

	// Doubling over exactly one year of daily bars
	equity := make([]float64, 252)
	for i := range equity {
		equity[i] = 100 * math.Pow(2, float64(i)/251)
	}
	got := CAGR(equity, 252)
	assert.InDelta(t, 100.0, got, 2.0)
}

func TestPeriodsPerYear(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     float64
	}{
		{time.Minute, 252 * 6.5 * 60},
		{15 * time.Minute, 252 * 6.5 * 4},
		{time.Hour, 252 * 6.5},
		{24 * time.Hour, 252},
		{7 * 24 * time.Hour, 52},
		{30 * 24 * time.Hour, 12},
		{0, 252},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PeriodsPerYear(tt.interval), "interval %v", tt.interval)
	}
}

func TestInferPeriodsPerYear_MedianDelta(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Daily bars with one weekend gap; median delta stays 1 day
	times := []time.Time{
		base,
		base.AddDate(0, 0, 1),
		base.AddDate(0, 0, 2),
		base.AddDate(0, 0, 5),
		base.AddDate(0, 0, 6),
	}
	assert.Equal(t, 252.0, InferPeriodsPerYear(times))

	// Fallback for too few points
	assert.Equal(t, 252.0, InferPeriodsPerYear([]time.Time{base}))
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 1.0, Percentile(values, 0), 1e-9)
	assert.InDelta(t, 5.0, Percentile(values, 100), 1e-9)
	// numpy-style linear interpolation: rank = 0.05*4 = 0.2
	assert.InDelta(t, 1.2, Percentile(values, 5), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestMeanStdMedian(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 2.0, Std(values), 1e-9)
	assert.InDelta(t, 4.5, Median(values), 1e-9)
}
