package algorithm

import (
	"sync"

	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Registry manages all available algorithms. Dispatch is a plain lookup
// table populated once at startup; there is no per-indicator branching
// anywhere else in the engine.
type Registry interface {
	Register(algo Algorithm) error
	Get(id types.AlgorithmID) (Algorithm, error)
	List() []types.AlgorithmID
}

type registryV1 struct {
	algorithms map[types.AlgorithmID]Algorithm
	mu         sync.RWMutex
}

// NewRegistry creates a registry populated with every built-in algorithm
// family.
func NewRegistry() Registry {
	r := &registryV1{
		algorithms: make(map[types.AlgorithmID]Algorithm),
		mu:         sync.RWMutex{},
	}

	// Registration of built-ins cannot collide.
	_ = r.Register(NewTimeWeightedAverage())
	_ = r.Register(NewVolumeWeightedAverage())
	_ = r.Register(NewLastPrice())
	_ = r.Register(NewMomentum())
	_ = r.Register(NewPriceRange())
	_ = r.Register(NewRealizedVolatility())
	_ = r.Register(NewDrawdown())
	_ = r.Register(NewTrailingStop())
	_ = r.Register(NewFixedTakeProfit())
	_ = r.Register(NewWindowElapsed())

	return r
}

// NewEmptyRegistry creates a registry with no algorithms, for tests.
func NewEmptyRegistry() Registry {
	return &registryV1{
		algorithms: make(map[types.AlgorithmID]Algorithm),
		mu:         sync.RWMutex{},
	}
}

// Register adds an algorithm to the registry.
func (r *registryV1) Register(algo Algorithm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := algo.Name()
	if _, exists := r.algorithms[id]; exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "algorithm %q already registered", id)
	}

	r.algorithms[id] = algo

	return nil
}

// Get retrieves an algorithm by id.
func (r *registryV1) Get(id types.AlgorithmID) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	algo, exists := r.algorithms[id]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeUnknownAlgorithm, "algorithm %q not found", id)
	}

	return algo, nil
}

// List returns the ids of all registered algorithms.
func (r *registryV1) List() []types.AlgorithmID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.AlgorithmID, 0, len(r.algorithms))
	for id := range r.algorithms {
		ids = append(ids, id)
	}

	return ids
}
