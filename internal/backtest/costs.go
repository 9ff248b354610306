package backtest

import (
	"fmt"

	"github.com/nicsoto/quantlab/internal/core"
)

// Default trading costs: 0.1% commission, 0.05% slippage per fill.
const (
	DefaultCommissionPct = 0.001
	DefaultSlippagePct   = 0.0005
)

// Costs models per-fill commission and slippage as percentages of price.
// Pure value type, freely shareable.
type Costs struct {
	CommissionPct float64
	SlippagePct   float64
}

// NewCosts validates and builds a cost model. Negative percentages are
// rejected at construction.
func NewCosts(commissionPct, slippagePct float64) (Costs, error) {
	if commissionPct < 0 {
		return Costs{}, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("commission_pct must be >= 0, got %v", commissionPct))
	}
	if slippagePct < 0 {
		return Costs{}, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("slippage_pct must be >= 0, got %v", slippagePct))
	}
	return Costs{CommissionPct: commissionPct, SlippagePct: slippagePct}, nil
}

// DefaultCosts returns the default cost model.
func DefaultCosts() Costs {
	return Costs{CommissionPct: DefaultCommissionPct, SlippagePct: DefaultSlippagePct}
}

// TotalCostPct is the aggregate cost of a full round trip (entry + exit).
func (c Costs) TotalCostPct() float64 {
	return (c.CommissionPct + c.SlippagePct) * 2
}

// ApplyToPrice degrades a fill price by commission plus slippage: buys fill
// higher, sells fill lower.
func (c Costs) ApplyToPrice(price float64, isBuy bool) float64 {
	total := c.CommissionPct + c.SlippagePct
	if isBuy {
		return price * (1 + total)
	}
	return price * (1 - total)
}
