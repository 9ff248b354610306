package core

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV candlestick
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLCV invariants for a single bar
func (b Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return WrapError(ErrInvalidInput,
			fmt.Errorf("bar at %s has non-positive price", b.Time.Format(time.RFC3339)))
	}
	if b.High < b.Open || b.High < b.Close {
		return WrapError(ErrInvalidInput,
			fmt.Errorf("bar at %s: high %.6f below open/close", b.Time.Format(time.RFC3339), b.High))
	}
	if b.Low > b.Open || b.Low > b.Close {
		return WrapError(ErrInvalidInput,
			fmt.Errorf("bar at %s: low %.6f above open/close", b.Time.Format(time.RFC3339), b.Low))
	}
	if b.Volume < 0 {
		return WrapError(ErrInvalidInput,
			fmt.Errorf("bar at %s has negative volume", b.Time.Format(time.RFC3339)))
	}
	return nil
}

// ValidateBars checks every bar plus the strictly-increasing timestamp invariant
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !bars[i-1].Time.Before(b.Time) {
			return WrapError(ErrInvalidInput,
				fmt.Errorf("timestamps not strictly increasing at index %d (%s)", i, b.Time.Format(time.RFC3339)))
		}
	}
	return nil
}

// Signal is a per-bar entry/exit decision produced by a strategy.
// Signal series are aligned to price series by timestamp.
type Signal struct {
	Time  time.Time
	Entry bool
	Exit  bool
}
