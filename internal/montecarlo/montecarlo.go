// Package montecarlo estimates strategy robustness by reshuffling realized
// returns. Each trial replays a random permutation (without replacement) of
// the historical per-period returns, so the distribution answers how
// sensitive the terminal outcome is to the sequence of wins and losses that
// happened to occur. Serial correlation structure is deliberately discarded.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/logger"
	"github.com/nicsoto/quantlab/internal/stats"
)

// Defaults for the simulator
const (
	DefaultNSimulations = 1000
	DefaultSeed         = 42
)

// MinReturns is the smallest usable return sample
const MinReturns = 10

// Simulator runs seeded return-reshuffle trials. Each Simulate call owns its
// random stream, so concurrent simulators with different seeds do not
// interfere.
type Simulator struct {
	nSimulations int
	seed         int64
	log          *zap.Logger
}

// NewSimulator creates a simulator. Non-positive nSimulations falls back to
// the default.
func NewSimulator(nSimulations int, seed int64, log *zap.Logger) *Simulator {
	if nSimulations <= 0 {
		nSimulations = DefaultNSimulations
	}
	return &Simulator{
		nSimulations: nSimulations,
		seed:         seed,
		log:          logger.OrNop(log),
	}
}

// Result holds the distributional statistics of one simulation run.
// Returns are decimals (0.10 = +10%); drawdowns are negative decimals.
type Result struct {
	ID string

	MeanFinalReturn   float64
	MedianFinalReturn float64
	StdFinalReturn    float64

	Percentile5  float64
	Percentile25 float64
	Percentile75 float64
	Percentile95 float64

	VaR95  float64 // 5th percentile of final return
	VaR99  float64 // 1st percentile of final return
	CVaR95 float64 // mean of final returns at or below VaR95

	MeanMaxDrawdown  float64
	WorstMaxDrawdown float64 // 1st percentile of per-path max drawdown

	ProbPositive float64 // P(return > 0)
	ProbDouble   float64 // P(return > 100%)
	ProbLoss50   float64 // P(return < -50%)

	// EquityPaths has one row per simulation and one column per period,
	// column 0 being the initial capital. Retained for fan charts.
	EquityPaths  [][]float64
	FinalReturns []float64
}

// Simulate runs the configured number of reshuffle trials over the given
// per-period return series. Identical seed and inputs produce bit-identical
// results.
func (s *Simulator) Simulate(returns []float64, initialCapital float64) (*Result, error) {
	if len(returns) < MinReturns {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("monte carlo needs at least %d returns, got %d", MinReturns, len(returns)))
	}
	if initialCapital <= 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("initial_capital must be > 0, got %v", initialCapital))
	}

	runID := uuid.NewString()
	nPeriods := len(returns)
	rng := rand.New(rand.NewSource(s.seed))

	s.log.Debug("starting monte carlo simulation",
		zap.String("run_id", runID),
		zap.Int("n_simulations", s.nSimulations),
		zap.Int("n_periods", nPeriods),
		zap.Int64("seed", s.seed),
	)

	paths := make([][]float64, s.nSimulations)
	finalReturns := make([]float64, s.nSimulations)
	maxDrawdowns := make([]float64, s.nSimulations)

	for sim := 0; sim < s.nSimulations; sim++ {
		path := make([]float64, nPeriods+1)
		path[0] = initialCapital

		perm := rng.Perm(nPeriods)
		for t, idx := range perm {
			path[t+1] = path[t] * (1 + returns[idx])
		}

		paths[sim] = path
		finalReturns[sim] = path[nPeriods]/initialCapital - 1
		maxDrawdowns[sim] = pathMaxDrawdown(path)
	}

	var95 := stats.Percentile(finalReturns, 5)
	result := &Result{
		ID:                runID,
		MeanFinalReturn:   stats.Mean(finalReturns),
		MedianFinalReturn: stats.Median(finalReturns),
		StdFinalReturn:    stats.Std(finalReturns),
		Percentile5:       stats.Percentile(finalReturns, 5),
		Percentile25:      stats.Percentile(finalReturns, 25),
		Percentile75:      stats.Percentile(finalReturns, 75),
		Percentile95:      stats.Percentile(finalReturns, 95),
		VaR95:             var95,
		VaR99:             stats.Percentile(finalReturns, 1),
		CVaR95:            cvar(finalReturns, var95),
		MeanMaxDrawdown:   stats.Mean(maxDrawdowns),
		WorstMaxDrawdown:  stats.Percentile(maxDrawdowns, 1),
		ProbPositive:      fraction(finalReturns, func(r float64) bool { return r > 0 }),
		ProbDouble:        fraction(finalReturns, func(r float64) bool { return r > 1.0 }),
		ProbLoss50:        fraction(finalReturns, func(r float64) bool { return r < -0.5 }),
		EquityPaths:       paths,
		FinalReturns:      finalReturns,
	}

	s.log.Info("monte carlo simulation complete",
		zap.String("run_id", runID),
		zap.Float64("mean_final_return", result.MeanFinalReturn),
		zap.Float64("var_95", result.VaR95),
		zap.Float64("prob_positive", result.ProbPositive),
	)

	return result, nil
}

// cvar is the mean of returns at or below the VaR threshold, falling back to
// the threshold itself when the tail set is empty or degenerate.
func cvar(finalReturns []float64, threshold float64) float64 {
	var sum float64
	n := 0
	for _, r := range finalReturns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return threshold
	}
	v := sum / float64(n)
	if math.IsNaN(v) {
		return threshold
	}
	return v
}

// pathMaxDrawdown is the deepest peak-to-trough decline of one equity path,
// as a negative decimal.
func pathMaxDrawdown(path []float64) float64 {
	var minDD float64
	peak := path[0]
	for _, v := range path {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

func fraction(values []float64, pred func(float64) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
