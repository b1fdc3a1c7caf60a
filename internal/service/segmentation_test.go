package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/testutil"
	"github.com/cartpulse/cartpulse/internal/types"
)

type SegmentationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SegmentationService
}

func TestSegmentationService(t *testing.T) {
	suite.Run(t, new(SegmentationServiceSuite))
}

func (s *SegmentationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSegmentationService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *SegmentationServiceSuite) TestClassifyNewCustomer() {
	cust := testCustomer("cust-1")
	s.GetStores().CustomerRepo.Add(cust)

	labels, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Contains(labels, types.SegmentNewCustomer)
	s.Contains(labels, types.SegmentLowValue)
	s.Contains(labels, types.SegmentLowEngagement)
	s.Contains(labels, types.SegmentNeverPurchased)
}

func (s *SegmentationServiceSuite) TestClassifyDerivedLabels() {
	cust := testCustomer("cust-1")
	cust.Type = types.CustomerTypeBusiness
	cust.LoyaltyTier = "gold"
	s.GetStores().CustomerRepo.Add(cust)

	labels, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Contains(labels, types.SegmentBusinessAccount)
	s.Contains(labels, "loyalty_gold")
}

func (s *SegmentationServiceSuite) TestClassifyHighValueSpender() {
	first := time.Now().UTC().AddDate(0, 0, -10)
	last := time.Now().UTC().AddDate(0, 0, -2)

	cust := testCustomer("cust-1")
	cust.Metrics.TotalOrders = 8
	cust.Metrics.TotalSpent = decimal.NewFromInt(12000)
	cust.Metrics.FirstPurchaseDate = &first
	cust.Metrics.LastPurchaseDate = &last
	s.GetStores().CustomerRepo.Add(cust)
	s.GetStores().CustomerRepo.SetMessageCount("cust-1", 60)

	labels, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Contains(labels, types.SegmentFrequentBuyer)
	s.Contains(labels, types.SegmentHighValue)
	s.Contains(labels, types.SegmentHighlyEngaged)
	s.Contains(labels, types.SegmentActive)
}

func (s *SegmentationServiceSuite) TestClassifyServesFromCache() {
	cust := testCustomer("cust-1")
	s.GetStores().CustomerRepo.Add(cust)

	first, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Contains(first, types.SegmentLowValue)

	// the underlying record changes but the cached classification holds
	cust.Metrics.TotalSpent = decimal.NewFromInt(20000)
	s.NoError(s.GetStores().CustomerRepo.Update(s.GetContext(), cust))

	second, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal(first, second)
}

func (s *SegmentationServiceSuite) TestRefreshSegmentsRecomputesAndPersists() {
	cust := testCustomer("cust-1")
	s.GetStores().CustomerRepo.Add(cust)

	_, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)

	cust.Metrics.TotalSpent = decimal.NewFromInt(20000)
	s.NoError(s.GetStores().CustomerRepo.Update(s.GetContext(), cust))

	labels, err := s.service.RefreshSegments(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Contains(labels, types.SegmentHighValue)

	// the snapshot lands on the customer record
	stored, err := s.GetStores().CustomerRepo.Get(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal(labels, stored.Segments)

	// and the refresh is announced on the bus
	events := s.GetPublisher().EventsForTopic(types.TopicSegmentsRefreshed)
	s.Len(events, 1)

	// subsequent reads come from the refreshed cache
	cached, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal(labels, cached)
}

func (s *SegmentationServiceSuite) TestClassifyRuleFailureIsFatal() {
	cust := testCustomer("cust-1")
	cust.Segments = []string{types.SegmentLowValue}
	s.GetStores().CustomerRepo.Add(cust)
	s.GetStores().CustomerRepo.FailMessageCounts(ierr.NewError("store down").Mark(ierr.ErrDatabase))

	_, err := s.service.Classify(s.GetContext(), "cust-1")
	s.Error(err)
	s.True(ierr.IsClassification(err))
	// the underlying cause stays on the chain
	s.True(ierr.IsDatabase(err))

	// persisted segments are untouched by the failed run
	stored, err := s.GetStores().CustomerRepo.Get(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal([]string{types.SegmentLowValue}, stored.Segments)
}

func (s *SegmentationServiceSuite) TestClassifyUnknownCustomer() {
	_, err := s.service.Classify(s.GetContext(), "cust-missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SegmentationServiceSuite) TestClassifyDeduplicatesLabels() {
	cust := testCustomer("cust-1")
	s.GetStores().CustomerRepo.Add(cust)

	labels, err := s.service.Classify(s.GetContext(), "cust-1")
	s.NoError(err)

	seen := make(map[string]bool)
	for _, label := range labels {
		s.False(seen[label], "label %s appears twice", label)
		seen[label] = true
	}
}
