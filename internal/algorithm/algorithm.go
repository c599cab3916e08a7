package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Params carries a variant's parameter set into a computation. It is built
// once at session creation and never mutated afterwards.
type Params struct {
	Windows []types.Window
	Num     map[string]float64
	Str     map[string]string
}

// Window returns the primary window, the first configured pair.
func (p Params) Window() types.Window {
	return p.Windows[0]
}

// NumOr returns the named numeric parameter or a default when absent.
func (p Params) NumOr(key string, def float64) float64 {
	if v, ok := p.Num[key]; ok {
		return v
	}

	return def
}

// RequireNum returns the named numeric parameter or a configuration error.
func (p Params) RequireNum(key string) (float64, error) {
	v, ok := p.Num[key]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMissingParameter, "required parameter %q not set", key)
	}

	return v, nil
}

// Algorithm is a pure computation for one indicator family. Implementations
// must not read the wall clock, perform I/O, or touch shared mutable state;
// all inputs arrive as arguments so batch and live evaluation share the
// exact same code path.
type Algorithm interface {
	// Name returns the registry id of the algorithm.
	Name() types.AlgorithmID
	// Category returns the variant category the algorithm serves.
	Category() types.Category
	// ValidateParams checks algorithm-specific parameters. Called once at
	// session creation; Compute never sees invalid parameters.
	ValidateParams(p Params) error
	// Compute evaluates the algorithm at instant `at`. The ticks slice is
	// ascending by time and contains only ticks with Time <= at. Returns
	// None when no value can be produced for this instant.
	Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64]
}
