package wfo

import (
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/backtest"
	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/strategy"
)

// Penalty scores for failed trials. A trial that errors (invalid parameter
// combination, pathological backtest) never aborts the search; it just loses.
const (
	PenaltySharpe = -10.0
	PenaltyReturn = -1.0
)

// trialMetrics is the internal result of one evaluated parameter set
type trialMetrics struct {
	sharpe  float64
	ret     float64
	sortino float64
}

func penaltyMetrics() trialMetrics {
	return trialMetrics{sharpe: PenaltySharpe, ret: PenaltyReturn, sortino: PenaltySharpe}
}

func (m trialMetrics) score(metric Metric) float64 {
	switch metric {
	case MetricReturn:
		return m.ret
	case MetricSortino:
		return m.sortino
	default:
		return m.sharpe
	}
}

// searchFold runs a bounded random search over the parameter space,
// maximizing the configured metric on the training window only.
func (o *Optimizer) searchFold(train []core.Bar, factory strategy.Factory, space ParamSpace, rng *rand.Rand) map[string]float64 {
	names := sortedNames(space)

	bestScore := math.Inf(-1)
	var bestParams map[string]float64

	for trial := 0; trial < o.cfg.NTrials; trial++ {
		params := sampleParams(space, names, rng)

		// Failure-to-penalty conversion happens here, at the search-loop
		// boundary, and nowhere else
		var score float64
		metrics, err := o.evaluate(train, factory, params)
		if err != nil {
			o.log.Debug("trial penalized",
				zap.Int("trial", trial),
				zap.Any("params", params),
				zap.Error(err),
			)
			score = penaltyMetrics().score(o.cfg.Metric)
		} else {
			score = metrics.score(o.cfg.Metric)
		}

		if score > bestScore {
			bestScore = score
			bestParams = params
		}
	}

	return bestParams
}

// evaluate backtests one parameter set and reports the objective metrics.
// Errors propagate so callers decide the penalty policy.
func (o *Optimizer) evaluate(bars []core.Bar, factory strategy.Factory, params map[string]float64) (trialMetrics, error) {
	strat, err := factory(params)
	if err != nil {
		return trialMetrics{}, err
	}

	signals, err := strat.GenerateSignals(bars)
	if err != nil {
		return trialMetrics{}, err
	}

	result, err := o.engine.Run(bars, signals.Signals, backtest.DefaultRunOptions())
	if err != nil {
		return trialMetrics{}, err
	}

	return trialMetrics{
		sharpe:  result.Stats.SharpeRatio,
		ret:     result.Stats.TotalReturnPct / 100,
		sortino: result.Stats.SortinoRatio,
	}, nil
}

// evaluateOrPenalty absorbs evaluation failures into penalty metrics, for
// fold-level scoring after the search has picked parameters.
func (o *Optimizer) evaluateOrPenalty(bars []core.Bar, factory strategy.Factory, params map[string]float64) trialMetrics {
	metrics, err := o.evaluate(bars, factory, params)
	if err != nil {
		return penaltyMetrics()
	}
	return metrics
}

// sampleParams draws one parameter set. Names are iterated in sorted order so
// a fixed seed reproduces the identical trial sequence.
func sampleParams(space ParamSpace, names []string, rng *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(names))
	for _, name := range names {
		r := space[name]
		if r.Integer {
			span := int(r.High) - int(r.Low) + 1
			if span < 1 {
				span = 1
			}
			params[name] = float64(int(r.Low) + rng.Intn(span))
		} else {
			params[name] = r.Low + rng.Float64()*(r.High-r.Low)
		}
	}
	return params
}

func sortedNames(space ParamSpace) []string {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
