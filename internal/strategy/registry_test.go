package strategy

import (
	"errors"
	"testing"

	"github.com/nicsoto/quantlab/internal/core"
)

type fakeStrategy struct{ name string }

func (f *fakeStrategy) Name() string                   { return f.name }
func (f *fakeStrategy) Params() map[string]float64     { return nil }
func (f *fakeStrategy) GenerateSignals(bars []core.Bar) (*SignalResult, error) {
	return &SignalResult{}, nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("fake", func(params map[string]float64) (Strategy, error) {
		return &fakeStrategy{name: "fake"}, nil
	})

	s, err := r.Build("fake", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "fake" {
		t.Errorf("expected fake, got %s", s.Name())
	}
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Build("missing", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, core.ErrStrategyNotFound) {
		t.Errorf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("a", func(map[string]float64) (Strategy, error) { return nil, nil })
	r.Register("b", func(map[string]float64) (Strategy, error) { return nil, nil })
	if len(r.Names()) != 2 {
		t.Errorf("expected 2 names, got %d", len(r.Names()))
	}
}
