package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

func TestDefinitionValidate(t *testing.T) {
	testCases := []struct {
		name          string
		def           Definition
		expectedError bool
	}{
		{
			name: "valid_two_way_split",
			def: Definition{
				Name:     "timing",
				Variants: []string{"a", "b"},
				Weights:  []float64{0.5, 1.0},
			},
		},
		{
			name: "missing_name",
			def: Definition{
				Variants: []string{"a"},
				Weights:  []float64{1.0},
			},
			expectedError: true,
		},
		{
			name: "misaligned_weights",
			def: Definition{
				Name:     "bad",
				Variants: []string{"a", "b"},
				Weights:  []float64{1.0},
			},
			expectedError: true,
		},
		{
			name: "weights_not_cumulative",
			def: Definition{
				Name:     "bad",
				Variants: []string{"a", "b"},
				Weights:  []float64{0.8, 0.5},
			},
			expectedError: true,
		},
		{
			name: "weights_do_not_reach_one",
			def: Definition{
				Name:     "bad",
				Variants: []string{"a", "b"},
				Weights:  []float64{0.3, 0.9},
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.expectedError {
				assert.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPickVariantWalksCumulativeWeights(t *testing.T) {
	def := Definition{
		Name:     "message_style",
		Variants: []string{"persuasive", "informative", "urgent"},
		Weights:  []float64{0.33, 0.66, 1.0},
	}

	assert.Equal(t, "persuasive", def.PickVariant(0.0))
	assert.Equal(t, "persuasive", def.PickVariant(0.33))
	assert.Equal(t, "informative", def.PickVariant(0.34))
	assert.Equal(t, "informative", def.PickVariant(0.66))
	assert.Equal(t, "urgent", def.PickVariant(0.67))
	assert.Equal(t, "urgent", def.PickVariant(0.999))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	def := Definition{
		Name:     "timing",
		Variants: []string{"a", "b"},
		Weights:  []float64{0.5, 1.0},
	}
	_, err := NewRegistry(def, def)
	assert.Error(t, err)
	assert.True(t, ierr.IsAlreadyExists(err))
}

func TestRegistryActivePreservesOrder(t *testing.T) {
	r, err := NewRegistry(
		Definition{Name: "one", Variants: []string{"a"}, Weights: []float64{1.0}, Active: true},
		Definition{Name: "two", Variants: []string{"a"}, Weights: []float64{1.0}, Active: false},
		Definition{Name: "three", Variants: []string{"a"}, Weights: []float64{1.0}, Active: true},
	)
	assert.NoError(t, err)

	active := r.Active()
	assert.Len(t, active, 2)
	assert.Equal(t, "one", active[0].Name)
	assert.Equal(t, "three", active[1].Name)
}

func TestDefaultRegistryExperiments(t *testing.T) {
	r := DefaultRegistry()

	timing, ok := r.Get(types.ExperimentTiming)
	assert.True(t, ok)
	assert.Equal(t, []string{types.VariantImmediate, types.VariantDelayed}, timing.Variants)
	assert.Equal(t, []float64{0.5, 1.0}, timing.Weights)

	style, ok := r.Get(types.ExperimentMessageStyle)
	assert.True(t, ok)
	assert.Len(t, style.Variants, 3)

	discount, ok := r.Get(types.ExperimentDiscountOffer)
	assert.True(t, ok)
	assert.Equal(t, []float64{0.33, 0.66, 1.0}, discount.Weights)

	assert.Len(t, r.Active(), 3)
}
