package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/nicsoto/quantlab/internal/core"
)

// Config is the explicit configuration passed into each component's
// constructor. There is no ambient global state: callers load one Config and
// hand pieces of it down.
type Config struct {
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	Costs       CostsConfig       `mapstructure:"costs"`
	MonteCarlo  MonteCarloConfig  `mapstructure:"monte_carlo"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward"`
	Log         LogConfig         `mapstructure:"log"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital" validate:"gt=0"`
	ExecutionDelay int     `mapstructure:"execution_delay" validate:"gte=0"`
	SizePct        float64 `mapstructure:"size_pct" validate:"gt=0,lte=1"`
}

type CostsConfig struct {
	CommissionPct float64 `mapstructure:"commission_pct" validate:"gte=0"`
	SlippagePct   float64 `mapstructure:"slippage_pct" validate:"gte=0"`
}

type MonteCarloConfig struct {
	NSimulations int   `mapstructure:"n_simulations" validate:"gte=1"`
	Seed         int64 `mapstructure:"seed"`
}

type WalkForwardConfig struct {
	NSplits  int     `mapstructure:"n_splits" validate:"gte=2"`
	TrainPct float64 `mapstructure:"train_pct" validate:"gt=0,lt=1"`
	NTrials  int     `mapstructure:"n_trials" validate:"gte=1"`
	Metric   string  `mapstructure:"metric" validate:"oneof=sharpe return sortino"`
	Seed     int64   `mapstructure:"seed"`

	// Heuristic overfitting cutoffs; configurable, documented in wfo
	OverfitSharpeGap  float64 `mapstructure:"overfit_sharpe_gap" validate:"gt=0"`
	StrongTrainSharpe float64 `mapstructure:"strong_train_sharpe"`
	WeakOOSSharpe     float64 `mapstructure:"weak_oos_sharpe"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			ExecutionDelay: 1,
			SizePct:        1.0,
		},
		Costs: CostsConfig{
			CommissionPct: 0.001,
			SlippagePct:   0.0005,
		},
		MonteCarlo: MonteCarloConfig{
			NSimulations: 1000,
			Seed:         42,
		},
		WalkForward: WalkForwardConfig{
			NSplits:           5,
			TrainPct:          0.7,
			NTrials:           30,
			Metric:            "sharpe",
			Seed:              42,
			OverfitSharpeGap:  0.5,
			StrongTrainSharpe: 1.0,
			WeakOOSSharpe:     0.3,
		},
		Log: LogConfig{
			Development: false,
		},
	}
}

// Load reads configuration from a file, applying defaults for anything the
// file omits. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("backtest.execution_delay", d.Backtest.ExecutionDelay)
	v.SetDefault("backtest.size_pct", d.Backtest.SizePct)
	v.SetDefault("costs.commission_pct", d.Costs.CommissionPct)
	v.SetDefault("costs.slippage_pct", d.Costs.SlippagePct)
	v.SetDefault("monte_carlo.n_simulations", d.MonteCarlo.NSimulations)
	v.SetDefault("monte_carlo.seed", d.MonteCarlo.Seed)
	v.SetDefault("walk_forward.n_splits", d.WalkForward.NSplits)
	v.SetDefault("walk_forward.train_pct", d.WalkForward.TrainPct)
	v.SetDefault("walk_forward.n_trials", d.WalkForward.NTrials)
	v.SetDefault("walk_forward.metric", d.WalkForward.Metric)
	v.SetDefault("walk_forward.seed", d.WalkForward.Seed)
	v.SetDefault("walk_forward.overfit_sharpe_gap", d.WalkForward.OverfitSharpeGap)
	v.SetDefault("walk_forward.strong_train_sharpe", d.WalkForward.StrongTrainSharpe)
	v.SetDefault("walk_forward.weak_oos_sharpe", d.WalkForward.WeakOOSSharpe)
	v.SetDefault("log.development", d.Log.Development)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	return nil
}
