package service

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/sales"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// AnalyticsService maintains the real-time sales window and the durable
// daily counters, and serves the revenue read paths.
type AnalyticsService interface {
	// IngestSale records a completed sale into the sliding window and the
	// daily counters. Each sale must be ingested exactly once.
	IngestSale(ctx context.Context, event *sales.Event) error

	// RealTimeStats aggregates the sales recorded within the sliding window
	// ending now
	RealTimeStats(ctx context.Context) (*RealTimeStats, error)

	// RevenueAnalytics buckets completed orders over [start, end] by the
	// given granularity and annotates each bucket with its growth rate
	RevenueAnalytics(ctx context.Context, start, end time.Time, granularity types.WindowGranularity) ([]*order.RevenueBucket, error)

	// DailySalesSummary reads the durable counters for a calendar date,
	// including per-segment revenue for the requested segment labels
	DailySalesSummary(ctx context.Context, date time.Time, segments ...string) (*DailySummary, error)

	// RepeatPurchaseRate is the share of purchasing customers who ordered
	// more than once
	RepeatPurchaseRate(ctx context.Context) (float64, error)
}

// RealTimeStats is a snapshot of the sliding sales window
type RealTimeStats struct {
	WindowSeconds     int             `json:"window_seconds"`
	OrderCount        int64           `json:"order_count"`
	Revenue           decimal.Decimal `json:"revenue"`
	ItemCount         int64           `json:"item_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	SalesPerMinute    decimal.Decimal `json:"sales_per_minute"`
	RevenuePerMinute  decimal.Decimal `json:"revenue_per_minute"`
	Orders            []*sales.Event  `json:"orders"`
}

// DailySummary is the durable counter view for one calendar date
type DailySummary struct {
	Date           string                     `json:"date"`
	Revenue        decimal.Decimal            `json:"revenue"`
	OrderCount     int64                      `json:"order_count"`
	ItemCount      int64                      `json:"item_count"`
	SegmentRevenue map[string]decimal.Decimal `json:"segment_revenue,omitempty"`
}

type analyticsService struct {
	ServiceParams

	// now is swapped in tests to pin the window boundary
	now func() time.Time
}

func NewAnalyticsService(params ServiceParams) AnalyticsService {
	return &analyticsService{
		ServiceParams: params,
		now:           time.Now,
	}
}

// windowKey is the single global sorted set backing the sliding window
func (s *analyticsService) windowKey() string {
	return cache.GenerateKey(cache.PrefixSalesWindow, "events")
}

func (s *analyticsService) IngestSale(ctx context.Context, event *sales.Event) error {
	if event == nil || event.OrderID == "" {
		return ierr.NewError("sales event requires an order id").
			WithHint("Order ID is required").
			Mark(ierr.ErrValidation)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	member, err := event.Marshal()
	if err != nil {
		return err
	}

	key := s.windowKey()
	if err := s.Cache.SortedSetAdd(ctx, key, event.Score(), member); err != nil {
		return err
	}

	// prune at write time so the set never grows past the retention window
	cutoff := float64(s.now().Add(-s.Config.Analytics.Window()).UnixNano()) / 1e9
	if err := s.Cache.SortedSetRemoveRangeByScore(ctx, key, math.Inf(-1), cutoff); err != nil {
		s.Logger.Errorw("failed to prune sales window", "error", err)
	}

	s.incrementDailyCounters(ctx, event)

	if err := s.EventPublisher.Publish(ctx, types.TopicSalesRecorded, event); err != nil {
		s.Logger.Errorw("failed to publish sales event", "order_id", event.OrderID, "error", err)
	}
	return nil
}

// incrementDailyCounters folds the sale into the per-date counters. Counter
// failures are logged and swallowed; they never fail the ingest.
func (s *analyticsService) incrementDailyCounters(ctx context.Context, event *sales.Event) {
	date := event.Timestamp.UTC().Format(types.DateLayout)
	cents := event.Amount.Shift(2).Round(0).IntPart()

	counters := map[string]int64{
		cache.GenerateKey(cache.PrefixDailySales, date, "revenue_cents"): cents,
		cache.GenerateKey(cache.PrefixDailySales, date, "orders"):        1,
		cache.GenerateKey(cache.PrefixDailySales, date, "items"):         int64(event.ItemCount),
	}
	for key, delta := range counters {
		if _, err := s.Cache.Increment(ctx, key, delta); err != nil {
			s.Logger.Errorw("failed to increment daily counter", "key", key, "error", err)
		}
	}

	// segment attribution is best effort: an unreachable customer record
	// skips the per-segment counters, never the totals above
	cust, err := s.CustomerRepo.Get(ctx, event.CustomerID)
	if err != nil {
		s.Logger.Warnw("skipping segment revenue attribution",
			"customer_id", event.CustomerID, "error", err)
		return
	}
	for _, label := range cust.Segments {
		key := cache.GenerateKey(cache.PrefixDailySales, date, "segment", label, "revenue_cents")
		if _, err := s.Cache.Increment(ctx, key, cents); err != nil {
			s.Logger.Errorw("failed to increment segment counter", "key", key, "error", err)
		}
	}
}

func (s *analyticsService) RealTimeStats(ctx context.Context) (*RealTimeStats, error) {
	window := s.Config.Analytics.Window()
	min := float64(s.now().Add(-window).UnixNano()) / 1e9

	members, err := s.Cache.SortedSetRangeByScore(ctx, s.windowKey(), min, math.Inf(1))
	if err != nil {
		return nil, err
	}

	stats := &RealTimeStats{
		WindowSeconds: int(window.Seconds()),
		Revenue:       decimal.Zero,
		Orders:        make([]*sales.Event, 0, len(members)),
	}
	for _, member := range members {
		event, err := sales.Unmarshal(member)
		if err != nil {
			s.Logger.Warnw("dropping corrupt window member", "error", err)
			continue
		}
		stats.OrderCount++
		stats.ItemCount += int64(event.ItemCount)
		stats.Revenue = stats.Revenue.Add(event.Amount)
		stats.Orders = append(stats.Orders, event)
	}
	if stats.OrderCount > 0 {
		stats.AverageOrderValue = stats.Revenue.DivRound(decimal.NewFromInt(stats.OrderCount), 4)
	}
	minutes := decimal.NewFromFloat(window.Minutes())
	if minutes.IsPositive() {
		stats.SalesPerMinute = decimal.NewFromInt(stats.OrderCount).DivRound(minutes, 4)
		stats.RevenuePerMinute = stats.Revenue.DivRound(minutes, 4)
	}
	return stats, nil
}

func (s *analyticsService) RevenueAnalytics(ctx context.Context, start, end time.Time, granularity types.WindowGranularity) ([]*order.RevenueBucket, error) {
	if !granularity.Validate() {
		return nil, ierr.NewError("invalid granularity").
			WithHintf("Granularity must be one of hour, day, week, month, got %s", granularity).
			Mark(ierr.ErrValidation)
	}
	if end.Before(start) {
		return nil, ierr.NewError("invalid range").
			WithHint("End must not precede start").
			Mark(ierr.ErrValidation)
	}

	buckets, err := s.OrderRepo.RevenueByPeriod(ctx, start, end, granularity)
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	for i, bucket := range buckets {
		if bucket.OrderCount > 0 {
			bucket.AverageOrderValue = bucket.Revenue.DivRound(decimal.NewFromInt(bucket.OrderCount), 4)
		}
		// the first bucket has no predecessor; a zero-revenue predecessor
		// leaves the rate at zero rather than dividing by it
		if i == 0 {
			continue
		}
		prev := buckets[i-1].Revenue
		if prev.IsZero() {
			continue
		}
		bucket.GrowthRate = bucket.Revenue.Sub(prev).DivRound(prev, 6).Mul(hundred)
	}
	return buckets, nil
}

func (s *analyticsService) DailySalesSummary(ctx context.Context, date time.Time, segments ...string) (*DailySummary, error) {
	day := date.UTC().Format(types.DateLayout)

	revenueCents, err := s.Cache.GetCounter(ctx, cache.GenerateKey(cache.PrefixDailySales, day, "revenue_cents"))
	if err != nil {
		return nil, err
	}
	orders, err := s.Cache.GetCounter(ctx, cache.GenerateKey(cache.PrefixDailySales, day, "orders"))
	if err != nil {
		return nil, err
	}
	items, err := s.Cache.GetCounter(ctx, cache.GenerateKey(cache.PrefixDailySales, day, "items"))
	if err != nil {
		return nil, err
	}

	summary := &DailySummary{
		Date:       day,
		Revenue:    decimal.New(revenueCents, -2),
		OrderCount: orders,
		ItemCount:  items,
	}
	if len(segments) > 0 {
		summary.SegmentRevenue = make(map[string]decimal.Decimal, len(segments))
		for _, label := range segments {
			cents, err := s.Cache.GetCounter(ctx, cache.GenerateKey(cache.PrefixDailySales, day, "segment", label, "revenue_cents"))
			if err != nil {
				return nil, err
			}
			summary.SegmentRevenue[label] = decimal.New(cents, -2)
		}
	}
	return summary, nil
}

func (s *analyticsService) RepeatPurchaseRate(ctx context.Context) (float64, error) {
	return s.OrderRepo.RepeatPurchaseRate(ctx)
}
