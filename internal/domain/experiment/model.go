package experiment

import (
	"math"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Definition is an A/B test: an ordered list of variants with matching
// cumulative probability weights. Definitions are immutable once the
// registry is built.
type Definition struct {
	Name string `json:"name"`

	// Variants in draw order
	Variants []string `json:"variants"`

	// Weights are cumulative probabilities aligned with Variants; the last
	// entry must be 1.0
	Weights []float64 `json:"weights"`

	Active bool `json:"active"`
}

// Validate checks the variant/weight lists are well formed
func (d Definition) Validate() error {
	if d.Name == "" {
		return ierr.NewError("experiment name is required").
			Mark(ierr.ErrValidation)
	}
	if len(d.Variants) == 0 || len(d.Variants) != len(d.Weights) {
		return ierr.NewError("variants and weights must be non-empty and aligned").
			WithHintf("Experiment %s has %d variants and %d weights", d.Name, len(d.Variants), len(d.Weights)).
			Mark(ierr.ErrValidation)
	}

	prev := 0.0
	for _, w := range d.Weights {
		if w < prev {
			return ierr.NewError("weights must be cumulative and non-decreasing").
				WithHintf("Experiment %s has out-of-order weights", d.Name).
				Mark(ierr.ErrValidation)
		}
		prev = w
	}
	if math.Abs(d.Weights[len(d.Weights)-1]-1.0) > 1e-9 {
		return ierr.NewError("cumulative weights must end at 1.0").
			WithHintf("Experiment %s weights end at %v", d.Name, d.Weights[len(d.Weights)-1]).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PickVariant walks the cumulative weight list until the cumulative sum
// meets or exceeds the draw. Draws are uniform in [0, 1).
func (d Definition) PickVariant(draw float64) string {
	for i, w := range d.Weights {
		if draw <= w {
			return d.Variants[i]
		}
	}
	return d.Variants[len(d.Variants)-1]
}

// Registry is the immutable set of experiment definitions, built once per
// process lifetime and passed into the orchestrator at construction.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry validates all definitions and builds a registry
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.defs[d.Name]; exists {
			return nil, ierr.NewError("duplicate experiment").
				WithHintf("Experiment %s registered twice", d.Name).
				Mark(ierr.ErrAlreadyExists)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get returns the definition for an experiment name
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Active returns the active definitions in registration order
func (r *Registry) Active() []Definition {
	var active []Definition
	for _, name := range r.order {
		if d := r.defs[name]; d.Active {
			active = append(active, d)
		}
	}
	return active
}

// DefaultRegistry wires the three cart-recovery experiments: send timing
// (50/50), message style (33/33/34) and discount offer (33/33/34).
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Definition{
			Name:     types.ExperimentTiming,
			Variants: []string{types.VariantImmediate, types.VariantDelayed},
			Weights:  []float64{0.5, 1.0},
			Active:   true,
		},
		Definition{
			Name:     types.ExperimentMessageStyle,
			Variants: []string{types.VariantPersuasive, types.VariantInformative, types.VariantUrgent},
			Weights:  []float64{0.33, 0.66, 1.0},
			Active:   true,
		},
		Definition{
			Name:     types.ExperimentDiscountOffer,
			Variants: []string{types.VariantNoDiscount, types.VariantTenPercentOff, types.VariantTwentyPercentOff},
			Weights:  []float64{0.33, 0.66, 1.0},
			Active:   true,
		},
	)
	if err != nil {
		// the built-in definitions are statically valid
		panic(err)
	}
	return r
}
