package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/domain/experiment"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/testutil"
	"github.com/cartpulse/cartpulse/internal/types"
)

type ExperimentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *experimentService
	draw    float64
}

func TestExperimentService(t *testing.T) {
	suite.Run(t, new(ExperimentServiceSuite))
}

func (s *ExperimentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.draw = 0.1
	s.service = &experimentService{
		ServiceParams: newTestServiceParams(&s.BaseServiceTestSuite),
		draw:          func() float64 { return s.draw },
	}
}

func (s *ExperimentServiceSuite) TestAssignVariantFollowsDraw() {
	s.draw = 0.1
	variant, err := s.service.AssignVariant(s.GetContext(), types.ExperimentTiming, "cust-1")
	s.NoError(err)
	s.Equal(types.VariantImmediate, variant)

	s.draw = 0.9
	variant, err = s.service.AssignVariant(s.GetContext(), types.ExperimentTiming, "cust-2")
	s.NoError(err)
	s.Equal(types.VariantDelayed, variant)
}

func (s *ExperimentServiceSuite) TestAssignmentIsSticky() {
	s.draw = 0.1
	first, err := s.service.AssignVariant(s.GetContext(), types.ExperimentMessageStyle, "cust-1")
	s.NoError(err)
	s.Equal(types.VariantPersuasive, first)

	// later draws never move an assigned customer
	s.draw = 0.9
	second, err := s.service.AssignVariant(s.GetContext(), types.ExperimentMessageStyle, "cust-1")
	s.NoError(err)
	s.Equal(first, second)
}

// lateReadCache hides keys from the first reads, simulating a peer whose
// write lands between this caller's lookup and its own store
type lateReadCache struct {
	cache.Cache
	misses int
}

func (c *lateReadCache) Get(ctx context.Context, key string) (string, bool) {
	if c.misses > 0 {
		c.misses--
		return "", false
	}
	return c.Cache.Get(ctx, key)
}

func (s *ExperimentServiceSuite) TestRacingAssignmentAdoptsWinner() {
	// the peer's assignment is already stored, but our first lookup misses it
	key := assignmentKey(types.ExperimentTiming, "cust-1")
	s.GetCache().Set(s.GetContext(), key, types.VariantDelayed)
	s.service.Cache = &lateReadCache{Cache: s.GetCache(), misses: 1}

	s.draw = 0.1
	variant, err := s.service.AssignVariant(s.GetContext(), types.ExperimentTiming, "cust-1")
	s.NoError(err)
	s.Equal(types.VariantDelayed, variant)

	// the loser never counts an impression for the variant it drew
	results, err := s.service.Results(s.GetContext(), types.ExperimentTiming)
	s.NoError(err)
	s.Equal(types.VariantImmediate, results[0].Variant)
	s.Equal(int64(0), results[0].Impressions)
}

func (s *ExperimentServiceSuite) TestImpressionsCountedOncePerCustomer() {
	for i := 0; i < 3; i++ {
		_, err := s.service.AssignVariant(s.GetContext(), types.ExperimentTiming, "cust-1")
		s.NoError(err)
	}

	results, err := s.service.Results(s.GetContext(), types.ExperimentTiming)
	s.NoError(err)
	s.Equal(types.VariantImmediate, results[0].Variant)
	s.Equal(int64(1), results[0].Impressions)
	s.Equal(int64(0), results[1].Impressions)
}

func (s *ExperimentServiceSuite) TestConversionRates() {
	s.draw = 0.1
	for _, id := range []string{"cust-1", "cust-2"} {
		_, err := s.service.AssignVariant(s.GetContext(), types.ExperimentTiming, id)
		s.NoError(err)
	}

	s.NoError(s.service.RecordConversion(s.GetContext(), types.ExperimentTiming, "cust-1"))

	results, err := s.service.Results(s.GetContext(), types.ExperimentTiming)
	s.NoError(err)
	s.Equal(int64(2), results[0].Impressions)
	s.Equal(int64(1), results[0].Conversions)
	s.InDelta(50.0, results[0].ConversionRate, 1e-9)
	s.Equal(float64(0), results[1].ConversionRate)
}

func (s *ExperimentServiceSuite) TestConversionFromUnenrolledCustomerIgnored() {
	s.NoError(s.service.RecordConversion(s.GetContext(), types.ExperimentTiming, "cust-unknown"))

	results, err := s.service.Results(s.GetContext(), types.ExperimentTiming)
	s.NoError(err)
	for _, r := range results {
		s.Equal(int64(0), r.Conversions)
	}
}

func (s *ExperimentServiceSuite) TestUnknownExperiment() {
	_, err := s.service.AssignVariant(s.GetContext(), "nonexistent", "cust-1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	err = s.service.RecordConversion(s.GetContext(), "nonexistent", "cust-1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.Results(s.GetContext(), "nonexistent")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *ExperimentServiceSuite) TestInactiveExperimentRefusesAssignment() {
	registry, err := experiment.NewRegistry(experiment.Definition{
		Name:     "paused",
		Variants: []string{"a", "b"},
		Weights:  []float64{0.5, 1.0},
		Active:   false,
	})
	s.NoError(err)
	s.service.Experiments = registry

	_, err = s.service.AssignVariant(s.GetContext(), "paused", "cust-1")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
