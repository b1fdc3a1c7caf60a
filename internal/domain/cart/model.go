package cart

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Cart is a shopping cart owned by the retention core for the duration of
// its active/abandoned lifecycle. TotalValue is derived and recomputed on
// every item mutation so that it always equals the sum of line totals at the
// moment of last save.
type Cart struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`

	Items []Item `json:"items"`

	Status types.CartStatus `db:"status" json:"status"`

	TotalValue decimal.Decimal `db:"total_value" json:"total_value"`

	LastActivity time.Time  `db:"last_activity" json:"last_activity"`
	AbandonedAt  *time.Time `db:"abandoned_at" json:"abandoned_at"`

	// RecoveryAttempts is the ordered log of messages sent for this cart
	RecoveryAttempts []RecoveryAttempt `json:"recovery_attempts"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Item is a single product line in a cart
type Item struct {
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// RecoveryAttempt is one dispatched recovery message and its reported
// outcome. A plan attempt spanning several channels produces one record per
// channel, each with its own ID, so responses land on the right message.
type RecoveryAttempt struct {
	ID            string                 `json:"id"`
	PlanAttemptID string                 `json:"plan_attempt_id"`
	Channel       types.Channel          `json:"channel"`
	TemplateID    string                 `json:"template_id"`
	SentAt        time.Time              `json:"sent_at"`
	Response      types.RecoveryResponse `json:"response"`
}

// NewCart creates an active cart for a customer
func NewCart(customerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixCart),
		CustomerID:   customerID,
		Status:       types.CartStatusActive,
		TotalValue:   decimal.Zero,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// recomputeTotal restores the TotalValue invariant after any item mutation
func (c *Cart) recomputeTotal() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalValue = total
}

func (c *Cart) touch(now time.Time) {
	c.LastActivity = now
	c.UpdatedAt = now
}

// AddItem adds quantity of a product, merging with an existing line
func (c *Cart) AddItem(item Item) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].UnitPrice = item.UnitPrice
			c.recomputeTotal()
			c.touch(time.Now().UTC())
			return
		}
	}
	c.Items = append(c.Items, item)
	c.recomputeTotal()
	c.touch(time.Now().UTC())
}

// RemoveItem drops a product line entirely
func (c *Cart) RemoveItem(productID string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	c.recomputeTotal()
	c.touch(time.Now().UTC())
}

// UpdateQuantity sets the quantity of a product line; zero removes the line
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			break
		}
	}
	c.recomputeTotal()
	c.touch(time.Now().UTC())
}

// ItemCount is the total number of units across all lines
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// MarkAbandoned transitions active → abandoned. The sweep calls this only
// for carts holding at least one item.
func (c *Cart) MarkAbandoned(now time.Time) error {
	if c.Status != types.CartStatusActive {
		return ierr.NewError("cart is not active").
			WithHintf("Cannot abandon a cart in status %s", c.Status).
			Mark(ierr.ErrInvalidOperation)
	}
	if len(c.Items) == 0 {
		return ierr.NewError("cart has no items").
			WithHint("Empty carts are not eligible for recovery").
			Mark(ierr.ErrInvalidOperation)
	}

	c.Status = types.CartStatusAbandoned
	t := now
	c.AbandonedAt = &t
	c.UpdatedAt = now
	return nil
}

// Reactivate transitions abandoned → active when the customer resumes
// shopping, clearing the abandonment marker
func (c *Cart) Reactivate(now time.Time) error {
	if c.Status != types.CartStatusAbandoned {
		return ierr.NewError("cart is not abandoned").
			WithHintf("Cannot reactivate a cart in status %s", c.Status).
			Mark(ierr.ErrInvalidOperation)
	}

	c.Status = types.CartStatusActive
	c.AbandonedAt = nil
	c.touch(now)
	return nil
}

// RevertAbandonment rolls an abandonment back after its recovery plan could
// not be set up. Unlike Reactivate it leaves LastActivity untouched, so the
// next sweep retries the cart immediately instead of waiting out the
// threshold again.
func (c *Cart) RevertAbandonment(now time.Time) error {
	if c.Status != types.CartStatusAbandoned {
		return ierr.NewError("cart is not abandoned").
			WithHintf("Cannot revert a cart in status %s", c.Status).
			Mark(ierr.ErrInvalidOperation)
	}

	c.Status = types.CartStatusActive
	c.AbandonedAt = nil
	c.UpdatedAt = now
	return nil
}

// MarkConverted transitions active/abandoned → converted once an order
// referencing the cart is placed or a recovery response reports conversion
func (c *Cart) MarkConverted(now time.Time) error {
	if c.Status != types.CartStatusActive && c.Status != types.CartStatusAbandoned {
		return ierr.NewError("cart cannot convert").
			WithHintf("Cannot convert a cart in status %s", c.Status).
			Mark(ierr.ErrInvalidOperation)
	}

	c.Status = types.CartStatusConverted
	c.UpdatedAt = now
	return nil
}

// MarkExpired applies the external TTL policy
func (c *Cart) MarkExpired(now time.Time) {
	c.Status = types.CartStatusExpired
	c.UpdatedAt = now
}

// AppendRecoveryAttempt records a dispatched recovery message
func (c *Cart) AppendRecoveryAttempt(attempt RecoveryAttempt) {
	c.RecoveryAttempts = append(c.RecoveryAttempts, attempt)
	c.UpdatedAt = time.Now().UTC()
}

// FindRecoveryAttempt returns the attempt record with the given id
func (c *Cart) FindRecoveryAttempt(attemptID string) (*RecoveryAttempt, bool) {
	for i := range c.RecoveryAttempts {
		if c.RecoveryAttempts[i].ID == attemptID {
			return &c.RecoveryAttempts[i], true
		}
	}
	return nil, false
}
