package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nicsoto/quantlab/internal/core"
	"github.com/nicsoto/quantlab/internal/logger"
)

// Registry maps strategy names to factories so callers (CLI, walk-forward
// optimizer) can build strategies by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	log       *zap.Logger
}

// NewRegistry creates an empty strategy registry
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		log:       logger.OrNop(log),
	}
}

// Register adds a factory under the given name
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.log.Debug("registered strategy", zap.String("name", name))
}

// Get retrieves a factory by name
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Build constructs a strategy by name with the given parameters
func (r *Registry) Build(name string, params map[string]float64) (Strategy, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound,
			fmt.Errorf("no strategy registered under %q", name))
	}
	return f(params)
}

// Names returns all registered strategy names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
