package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a completed purchase. Orders are immutable once finalized except
// for status transitions and are treated here as read-only input to
// analytics, segmentation and cart conversion.
type Order struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`

	// CartID references the cart the order was placed from, when any
	CartID string `db:"cart_id" json:"cart_id"`

	Total     decimal.Decimal `db:"total" json:"total"`
	Items     []Item          `json:"items"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Item is a single line of an order
type Item struct {
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// ItemCount is the total number of units across all lines
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// RevenueBucket is one calendar bucket of the revenue analytics read path.
// Buckets are always produced in chronological order; the growth rate is
// appended by the analytics service after bucketing.
type RevenueBucket struct {
	Period            time.Time       `db:"period" json:"period"`
	Revenue           decimal.Decimal `db:"revenue" json:"revenue"`
	OrderCount        int64           `db:"order_count" json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	GrowthRate        decimal.Decimal `json:"growth_rate"`
}
