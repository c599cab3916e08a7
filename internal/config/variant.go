package config

import (
	validator "github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Variant is a concrete, parameterized instance of an algorithm, ready to be
// evaluated. Variants are immutable for a running session; edits require a
// new session.
type Variant struct {
	ID              string             `yaml:"id" json:"id" jsonschema:"title=Variant ID" validate:"required"`
	Category        types.Category     `yaml:"category" json:"category" jsonschema:"title=Category" validate:"required,oneof=general risk price stop_loss take_profit close_order"`
	Algorithm       types.AlgorithmID  `yaml:"algorithm" json:"algorithm" jsonschema:"title=Algorithm ID" validate:"required"`
	RefreshInterval float64            `yaml:"refresh_interval" json:"refresh_interval" jsonschema:"title=Refresh Interval,description=Recomputation cadence in seconds; fractional values allowed" validate:"required,gt=0"`
	Windows         []types.Window     `yaml:"windows" json:"windows" jsonschema:"title=Windows" validate:"min=1,dive"`
	Params          map[string]float64 `yaml:"params" json:"params,omitempty" jsonschema:"title=Numeric Parameters"`
	StringParams    map[string]string  `yaml:"string_params" json:"string_params,omitempty" jsonschema:"title=String Parameters"`
}

// Validate checks the variant's structural constraints. Algorithm-specific
// parameter checks happen against the registry at session creation.
func (v *Variant) Validate() error {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid variant %q", v.ID)
	}

	for i, w := range v.Windows {
		if w.T1 <= w.T2 {
			return errors.Newf(errors.ErrCodeInvalidWindow,
				"variant %q window %d: t1 (%v) must be greater than t2 (%v)", v.ID, i, w.T1, w.T2)
		}
	}

	return nil
}

// Window returns the variant's primary window, the first configured pair.
func (v *Variant) Window() types.Window {
	return v.Windows[0]
}

// MaxLookback returns the largest leading offset across the variant's
// windows, used to size the live ring buffer.
func (v *Variant) MaxLookback() float64 {
	max := 0.0
	for _, w := range v.Windows {
		if w.T1 > max {
			max = w.T1
		}
	}

	return max
}

// TickTriggered reports whether the variant qualifies for out-of-band
// evaluation on tick arrival: its primary window ends at the evaluation
// instant itself.
func (v *Variant) TickTriggered() bool {
	return v.Windows[0].T2 == 0
}
