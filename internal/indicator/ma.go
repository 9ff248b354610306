package indicator

import "math"

// SMA calculates a Simple Moving Average aligned to the input series.
// The first period-1 values are NaN (warmup), matching the input length so
// indicator series can be compared bar by bar.
func SMA(prices []float64, period int) []float64 {
	result := warmup(len(prices), period)
	if period < 1 || len(prices) < period {
		return result
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result[period-1] = sum / float64(period)

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result[i] = sum / float64(period)
	}

	return result
}

// EMA calculates an Exponential Moving Average aligned to the input series.
// Seeded with the SMA of the first period values; warmup values are NaN.
func EMA(prices []float64, period int) []float64 {
	result := warmup(len(prices), period)
	if period < 1 || len(prices) < period {
		return result
	}

	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result[period-1] = ema

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result[i] = ema
	}

	return result
}

func warmup(n, period int) []float64 {
	result := make([]float64, n)
	for i := 0; i < n && i < period-1; i++ {
		result[i] = math.NaN()
	}
	if period > n {
		for i := range result {
			result[i] = math.NaN()
		}
	}
	return result
}
