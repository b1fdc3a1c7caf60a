package order

import (
	"context"
	"time"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Repository defines the interface for order data access
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Order, error)

	// RevenueByPeriod groups completed orders into calendar buckets of the
	// given granularity over [start, end] and returns them in chronological
	// order. Growth rates are not part of the aggregation.
	RevenueByPeriod(ctx context.Context, start, end time.Time, granularity types.WindowGranularity) ([]*RevenueBucket, error)

	// RepeatPurchaseRate is the share of customers with more than one order
	// among customers with at least one order. Customers with zero orders
	// are excluded from the denominator.
	RepeatPurchaseRate(ctx context.Context) (float64, error)
}
