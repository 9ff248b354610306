// Package wfo implements walk-forward optimization: history is split into
// sequential train/test windows, parameters are tuned on each training window
// with a bounded black-box search, and the winners are scored out-of-sample
// to measure parameter stability and detect overfitting.
package wfo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/backtest"
	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/logger"
	"github.com/nicsoto/quantlab/internal/strategy"
)

// Metric selects the objective the inner search maximizes
type Metric string

const (
	MetricSharpe  Metric = "sharpe"
	MetricReturn  Metric = "return"
	MetricSortino Metric = "sortino"
)

// Fold-size floor: smaller windows are discarded
const (
	MinTrainBars = 50
	MinTestBars  = 10
)

// Thresholds holds the heuristic overfitting cutoffs. They are configurable
// but their meaning is fixed: a large in-sample vs out-of-sample Sharpe gap,
// or strong in-sample performance that collapses out-of-sample, flags the
// parameter set as overfit.
type Thresholds struct {
	SharpeGap         float64
	StrongTrainSharpe float64
	WeakOOSSharpe     float64
}

// DefaultThresholds returns the standard heuristic cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{
		SharpeGap:         0.5,
		StrongTrainSharpe: 1.0,
		WeakOOSSharpe:     0.3,
	}
}

// Config holds walk-forward settings
type Config struct {
	NSplits        int
	TrainPct       float64
	NTrials        int
	Metric         Metric
	Seed           int64
	InitialCapital float64
	Costs          backtest.Costs
	Thresholds     Thresholds
}

// DefaultConfig returns the standard 5-fold, 70/30 configuration
func DefaultConfig() Config {
	return Config{
		NSplits:        5,
		TrainPct:       0.7,
		NTrials:        30,
		Metric:         MetricSharpe,
		Seed:           42,
		InitialCapital: 10000,
		Costs:          backtest.DefaultCosts(),
		Thresholds:     DefaultThresholds(),
	}
}

// Range bounds one searchable parameter. Integer ranges are sampled on whole
// values.
type Range struct {
	Low     float64
	High    float64
	Integer bool
}

// ParamSpace maps parameter names to their search ranges
type ParamSpace map[string]Range

// Fold is one train/test window with its tuned parameters and scores
type Fold struct {
	Index       int
	TrainStart  time.Time
	TrainEnd    time.Time
	TestStart   time.Time
	TestEnd     time.Time
	BestParams  map[string]float64
	TrainSharpe float64
	TestSharpe  float64
	TrainReturn float64
	TestReturn  float64
}

// Result is the consolidated walk-forward verdict. Immutable once returned.
type Result struct {
	ID             string
	Folds          []Fold
	OOSSharpe      float64
	OOSReturn      float64
	ParamStability float64
	IsOverfit      bool
}

// Optimizer runs walk-forward optimization against the backtest engine.
// Each Optimize call owns its random stream.
type Optimizer struct {
	cfg    Config
	engine *backtest.Engine
	log    *zap.Logger
}

// NewOptimizer validates the configuration and builds an optimizer.
func NewOptimizer(cfg Config, log *zap.Logger) (*Optimizer, error) {
	if cfg.NSplits < 2 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("n_splits must be >= 2, got %d", cfg.NSplits))
	}
	if cfg.TrainPct <= 0 || cfg.TrainPct >= 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("train_pct must be in (0, 1), got %v", cfg.TrainPct))
	}
	if cfg.NTrials < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("n_trials must be >= 1, got %d", cfg.NTrials))
	}
	switch cfg.Metric {
	case MetricSharpe, MetricReturn, MetricSortino:
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown metric %q", cfg.Metric))
	}

	engine, err := backtest.NewEngine(cfg.InitialCapital, cfg.Costs, log)
	if err != nil {
		return nil, err
	}

	return &Optimizer{
		cfg:    cfg,
		engine: engine,
		log:    logger.OrNop(log),
	}, nil
}

// Optimize runs the complete walk-forward procedure for the given strategy
// factory over the given parameter space.
func (o *Optimizer) Optimize(prices []core.Bar, factory strategy.Factory, space ParamSpace) (*Result, error) {
	if len(prices) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("prices series is empty"))
	}
	if len(space) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("param space is empty"))
	}

	windows := o.createFolds(prices)
	if len(windows) < 2 {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("walk-forward needs at least 2 usable folds, got %d", len(windows)))
	}

	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(o.cfg.Seed))

	o.log.Info("starting walk-forward optimization",
		zap.String("run_id", runID),
		zap.Int("folds", len(windows)),
		zap.Int("n_trials", o.cfg.NTrials),
		zap.String("metric", string(o.cfg.Metric)),
	)

	folds := make([]Fold, 0, len(windows))
	allParams := make([]map[string]float64, 0, len(windows))

	for i, w := range windows {
		best := o.searchFold(w.train, factory, space, rng)
		allParams = append(allParams, best)

		// Train metrics for the overfit gap; test metrics are strictly
		// out-of-sample and never feed back into parameter selection
		trainM := o.evaluateOrPenalty(w.train, factory, best)
		testM := o.evaluateOrPenalty(w.test, factory, best)

		fold := Fold{
			Index:       i,
			TrainStart:  w.train[0].Time,
			TrainEnd:    w.train[len(w.train)-1].Time,
			TestStart:   w.test[0].Time,
			TestEnd:     w.test[len(w.test)-1].Time,
			BestParams:  best,
			TrainSharpe: trainM.sharpe,
			TestSharpe:  testM.sharpe,
			TrainReturn: trainM.ret,
			TestReturn:  testM.ret,
		}
		folds = append(folds, fold)

		o.log.Debug("fold complete",
			zap.String("run_id", runID),
			zap.Int("fold", i),
			zap.Float64("train_sharpe", fold.TrainSharpe),
			zap.Float64("test_sharpe", fold.TestSharpe),
			zap.Any("best_params", best),
		)
	}

	var trainSharpe, oosSharpe, oosReturn float64
	for _, f := range folds {
		trainSharpe += f.TrainSharpe
		oosSharpe += f.TestSharpe
		oosReturn += f.TestReturn
	}
	n := float64(len(folds))
	trainSharpe /= n
	oosSharpe /= n
	oosReturn /= n

	th := o.cfg.Thresholds
	isOverfit := (trainSharpe-oosSharpe) > th.SharpeGap ||
		(trainSharpe > th.StrongTrainSharpe && oosSharpe < th.WeakOOSSharpe)

	result := &Result{
		ID:             runID,
		Folds:          folds,
		OOSSharpe:      oosSharpe,
		OOSReturn:      oosReturn,
		ParamStability: paramStability(allParams),
		IsOverfit:      isOverfit,
	}

	o.log.Info("walk-forward optimization complete",
		zap.String("run_id", runID),
		zap.Float64("oos_sharpe", result.OOSSharpe),
		zap.Float64("param_stability", result.ParamStability),
		zap.Bool("is_overfit", result.IsOverfit),
	)

	return result, nil
}

// window is one contiguous train/test block
type window struct {
	train []core.Bar
	test  []core.Bar
}

// createFolds splits prices into NSplits contiguous chronological blocks and
// carves each into train/test by TrainPct. Undersized windows are discarded.
func (o *Optimizer) createFolds(prices []core.Bar) []window {
	n := len(prices)
	foldSize := n / o.cfg.NSplits
	if foldSize == 0 {
		return nil
	}

	var windows []window
	for i := 0; i < o.cfg.NSplits; i++ {
		start := i * foldSize
		end := start + foldSize
		if i == o.cfg.NSplits-1 {
			end = n
		}

		block := prices[start:end]
		trainSize := int(float64(len(block)) * o.cfg.TrainPct)
		train := block[:trainSize]
		test := block[trainSize:]

		if len(train) >= MinTrainBars && len(test) >= MinTestBars {
			windows = append(windows, window{train: train, test: test})
		}
	}
	return windows
}

// paramStability scores cross-fold parameter dispersion in [0, 1] via the
// inverse mean coefficient of variation. Identical parameters in every fold
// score exactly 1.
func paramStability(paramsList []map[string]float64) float64 {
	if len(paramsList) < 2 {
		return 1.0
	}

	names := make([]string, 0, len(paramsList[0]))
	for name := range paramsList[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	var cvs []float64
	for _, name := range names {
		values := make([]float64, 0, len(paramsList))
		for _, params := range paramsList {
			values = append(values, params[name])
		}

		sd := sampleStd(values)
		if sd == 0 {
			cvs = append(cvs, 0)
			continue
		}
		cvs = append(cvs, sd/(mean(values)+1e-8))
	}

	if len(cvs) == 0 {
		return 1.0
	}
	return 1 / (1 + mean(cvs))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
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
