package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/sales"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/testutil"
	"github.com/cartpulse/cartpulse/internal/types"
)

type AnalyticsServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *analyticsService
	now     time.Time
}

func TestAnalyticsService(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceSuite))
}

func (s *AnalyticsServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.now = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.service = &analyticsService{
		ServiceParams: newTestServiceParams(&s.BaseServiceTestSuite),
		now:           func() time.Time { return s.now },
	}
}

func (s *AnalyticsServiceSuite) event(orderID string, amount int64, items int, at time.Time) *sales.Event {
	return &sales.Event{
		OrderID:    orderID,
		CustomerID: "cust-1",
		Amount:     decimal.NewFromInt(amount),
		ItemCount:  items,
		Timestamp:  at,
	}
}

func (s *AnalyticsServiceSuite) TestRealTimeStatsWindow() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))

	window := s.GetConfig().Analytics.Window()

	// two events inside the window, one just outside
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-1", 100, 2, s.now.Add(-window+time.Second))))
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-2", 50, 1, s.now.Add(-time.Second))))
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-3", 999, 9, s.now.Add(-window-time.Second))))

	stats, err := s.service.RealTimeStats(s.GetContext())
	s.NoError(err)
	s.Equal(int64(2), stats.OrderCount)
	s.Equal(int64(3), stats.ItemCount)
	s.True(stats.Revenue.Equal(decimal.NewFromInt(150)), "revenue was %s", stats.Revenue)
	s.True(stats.AverageOrderValue.Equal(decimal.NewFromInt(75)))

	s.Len(stats.Orders, 2)
	s.Equal("ord-1", stats.Orders[0].OrderID)
	s.Equal("ord-2", stats.Orders[1].OrderID)

	// 2 orders and 150 revenue over a 5 minute window
	s.True(stats.SalesPerMinute.Equal(decimal.RequireFromString("0.4")), "sales/min was %s", stats.SalesPerMinute)
	s.True(stats.RevenuePerMinute.Equal(decimal.NewFromInt(30)), "revenue/min was %s", stats.RevenuePerMinute)
}

func (s *AnalyticsServiceSuite) TestIngestPrunesExpiredEvents() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))

	window := s.GetConfig().Analytics.Window()
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-old", 10, 1, s.now.Add(-2*window))))
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-new", 20, 1, s.now)))

	members, err := s.GetCache().SortedSetRangeByScore(s.GetContext(), s.service.windowKey(), 0, float64(s.now.UnixNano())/1e9)
	s.NoError(err)
	s.Len(members, 1)
}

func (s *AnalyticsServiceSuite) TestIngestRequiresOrderID() {
	err := s.service.IngestSale(s.GetContext(), &sales.Event{})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *AnalyticsServiceSuite) TestDailyCounters() {
	cust := testCustomer("cust-1")
	cust.Segments = []string{types.SegmentHighValue}
	s.GetStores().CustomerRepo.Add(cust)

	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-1", 100, 2, s.now)))
	s.NoError(s.service.IngestSale(s.GetContext(), s.event("ord-2", 49, 1, s.now.Add(time.Minute))))

	summary, err := s.service.DailySalesSummary(s.GetContext(), s.now, types.SegmentHighValue)
	s.NoError(err)
	s.Equal("2026-08-26", summary.Date)
	s.Equal(int64(2), summary.OrderCount)
	s.Equal(int64(3), summary.ItemCount)
	s.True(summary.Revenue.Equal(decimal.NewFromInt(149)), "revenue was %s", summary.Revenue)
	s.True(summary.SegmentRevenue[types.SegmentHighValue].Equal(decimal.NewFromInt(149)))

	// a different date reads empty
	empty, err := s.service.DailySalesSummary(s.GetContext(), s.now.AddDate(0, 0, 1))
	s.NoError(err)
	s.Equal(int64(0), empty.OrderCount)
	s.True(empty.Revenue.IsZero())
}

func (s *AnalyticsServiceSuite) TestDailyCountersCentsPrecision() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))

	e := s.event("ord-1", 0, 1, s.now)
	e.Amount = decimal.RequireFromString("19.99")
	s.NoError(s.service.IngestSale(s.GetContext(), e))

	summary, err := s.service.DailySalesSummary(s.GetContext(), s.now)
	s.NoError(err)
	s.True(summary.Revenue.Equal(decimal.RequireFromString("19.99")), "revenue was %s", summary.Revenue)
}

func (s *AnalyticsServiceSuite) TestIngestSurvivesMissingCustomer() {
	e := s.event("ord-1", 100, 1, s.now)
	e.CustomerID = "cust-missing"
	s.NoError(s.service.IngestSale(s.GetContext(), e))

	summary, err := s.service.DailySalesSummary(s.GetContext(), s.now)
	s.NoError(err)
	s.Equal(int64(1), summary.OrderCount)
}

func (s *AnalyticsServiceSuite) TestRevenueAnalyticsGrowthRates() {
	day := func(offset int) time.Time {
		return time.Date(2026, 8, 1+offset, 10, 0, 0, 0, time.UTC)
	}
	for i, total := range []int64{100, 150, 90} {
		s.GetStores().OrderRepo.Add(&order.Order{
			ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixOrder),
			CustomerID: "cust-1",
			Total:      decimal.NewFromInt(total),
			Status:     "completed",
			CreatedAt:  day(i),
		})
	}

	buckets, err := s.service.RevenueAnalytics(s.GetContext(), day(0).Add(-time.Hour), day(2).Add(time.Hour), types.GranularityDay)
	s.NoError(err)
	s.Len(buckets, 3)

	// the first bucket has no baseline
	s.True(buckets[0].GrowthRate.IsZero())
	s.True(buckets[1].GrowthRate.Equal(decimal.NewFromInt(50)), "growth was %s", buckets[1].GrowthRate)
	s.True(buckets[2].GrowthRate.Equal(decimal.NewFromInt(-40)), "growth was %s", buckets[2].GrowthRate)

	s.True(buckets[0].AverageOrderValue.Equal(decimal.NewFromInt(100)))
}

func (s *AnalyticsServiceSuite) TestRevenueAnalyticsValidation() {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.service.RevenueAnalytics(s.GetContext(), start, start.AddDate(0, 0, 7), types.WindowGranularity("decade"))
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.RevenueAnalytics(s.GetContext(), start, start.AddDate(0, 0, -1), types.GranularityDay)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *AnalyticsServiceSuite) TestRepeatPurchaseRate() {
	add := func(id, customerID string) {
		s.GetStores().OrderRepo.Add(&order.Order{
			ID:         id,
			CustomerID: customerID,
			Total:      decimal.NewFromInt(10),
			Status:     "completed",
			CreatedAt:  s.now,
		})
	}
	add("ord-1", "cust-1")
	add("ord-2", "cust-1")
	add("ord-3", "cust-2")

	rate, err := s.service.RepeatPurchaseRate(s.GetContext())
	s.NoError(err)
	s.InDelta(0.5, rate, 1e-9)
}
