package backtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicsoto/quantlab/internal/core"
)

func TestNewCosts_Valid(t *testing.T) {
	c, err := NewCosts(0.001, 0.0005)
	require.NoError(t, err)
	assert.Equal(t, 0.001, c.CommissionPct)
	assert.Equal(t, 0.0005, c.SlippagePct)
}

func TestNewCosts_NegativeCommission(t *testing.T) {
	_, err := NewCosts(-0.001, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestNewCosts_NegativeSlippage(t *testing.T) {
	_, err := NewCosts(0, -0.0005)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestCosts_TotalCostPct(t *testing.T) {
	c, err := NewCosts(0.001, 0.0005)
	require.NoError(t, err)
	// Applied on entry and exit: (0.001 + 0.0005) * 2
	assert.InDelta(t, 0.003, c.TotalCostPct(), 1e-12)
}

func TestCosts_ApplyToPrice(t *testing.T) {
	c, err := NewCosts(0.001, 0.0005)
	require.NoError(t, err)

	// Buys fill higher, sells fill lower
	assert.InDelta(t, 100.15, c.ApplyToPrice(100, true), 1e-9)
	assert.InDelta(t, 99.85, c.ApplyToPrice(100, false), 1e-9)
}

func TestDefaultCosts(t *testing.T) {
	c := DefaultCosts()
	assert.Equal(t, DefaultCommissionPct, c.CommissionPct)
	assert.Equal(t, DefaultSlippagePct, c.SlippagePct)
}
