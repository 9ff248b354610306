package backtest

import (
	"fmt"

	"github.com/nicsoto/quantlab/internal/core"
)

// PositionSize returns the number of units to buy so that a stop-out loses
// exactly riskPct of capital. For capital 10000, riskPct 0.01, entry 100 and
// stop 95 this is 20 units: a fill of the stop loses $100.
func PositionSize(capital, riskPct, entryPrice, stopLossPrice float64) (float64, error) {
	if capital <= 0 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("capital must be > 0, got %v", capital))
	}
	if riskPct <= 0 || riskPct > 1 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("risk_pct must be between 0 and 1, got %v", riskPct))
	}
	if entryPrice <= 0 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("entry_price must be > 0, got %v", entryPrice))
	}
	if stopLossPrice <= 0 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("stop_loss_price must be > 0, got %v", stopLossPrice))
	}
	if stopLossPrice >= entryPrice {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("stop_loss_price %v must be < entry_price %v for long positions", stopLossPrice, entryPrice))
	}

	riskPerUnit := entryPrice - stopLossPrice
	amountToRisk := capital * riskPct
	return amountToRisk / riskPerUnit, nil
}

// FixedFractionSize returns the number of units bought by investing a fixed
// fraction of capital at the given price.
func FixedFractionSize(capital, fraction, price float64) (float64, error) {
	if capital <= 0 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("capital must be > 0, got %v", capital))
	}
	if fraction <= 0 || fraction > 1 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("fraction must be between 0 and 1, got %v", fraction))
	}
	if price <= 0 {
		return 0, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("price must be > 0, got %v", price))
	}

	return capital * fraction / price, nil
}
