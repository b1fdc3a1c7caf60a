package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpulse/cartpulse/internal/domain/order"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// InMemoryOrderStore implements order.Repository
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
}

// NewInMemoryOrderStore creates a new in-memory order store
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore[*order.Order](),
	}
}

// Add seeds an order into the store
func (s *InMemoryOrderStore) Add(o *order.Order) {
	_ = s.InMemoryStore.Create(context.Background(), o.ID, o)
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("order not found").
			WithHintf("Order %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return o, nil
}

func (s *InMemoryOrderStore) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	return s.List(ctx,
		func(_ context.Context, o *order.Order) bool { return o.CustomerID == customerID },
		func(i, j *order.Order) bool { return i.CreatedAt.Before(j.CreatedAt) },
	)
}

// truncatePeriod mirrors postgres date_trunc for the supported granularities
func truncatePeriod(t time.Time, granularity types.WindowGranularity) time.Time {
	t = t.UTC()
	switch granularity {
	case types.GranularityHour:
		return t.Truncate(time.Hour)
	case types.GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case types.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// date_trunc weeks start on Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case types.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func (s *InMemoryOrderStore) RevenueByPeriod(ctx context.Context, start, end time.Time, granularity types.WindowGranularity) ([]*order.RevenueBucket, error) {
	orders, err := s.List(ctx,
		func(_ context.Context, o *order.Order) bool {
			return o.Status == "completed" &&
				!o.CreatedAt.Before(start) && !o.CreatedAt.After(end)
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[time.Time]*order.RevenueBucket)
	for _, o := range orders {
		period := truncatePeriod(o.CreatedAt, granularity)
		bucket, ok := byPeriod[period]
		if !ok {
			bucket = &order.RevenueBucket{Period: period, Revenue: decimal.Zero}
			byPeriod[period] = bucket
		}
		bucket.Revenue = bucket.Revenue.Add(o.Total)
		bucket.OrderCount++
	}

	buckets := make([]*order.RevenueBucket, 0, len(byPeriod))
	for _, bucket := range byPeriod {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Period.Before(buckets[j].Period)
	})
	return buckets, nil
}

func (s *InMemoryOrderStore) RepeatPurchaseRate(ctx context.Context) (float64, error) {
	orders, err := s.List(ctx, nil, nil)
	if err != nil {
		return 0, err
	}

	perCustomer := make(map[string]int)
	for _, o := range orders {
		perCustomer[o.CustomerID]++
	}
	if len(perCustomer) == 0 {
		return 0, nil
	}

	repeat := 0
	for _, count := range perCustomer {
		if count > 1 {
			repeat++
		}
	}
	return float64(repeat) / float64(len(perCustomer)), nil
}
