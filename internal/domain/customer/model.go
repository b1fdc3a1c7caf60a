package customer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Customer represents a shopper in the system. The retention core reads the
// full record but only writes back the segments snapshot and the purchase
// metrics; everything else is owned by the CRUD layer.
type Customer struct {
	// ID is the unique identifier for the customer
	ID string `db:"id" json:"id"`

	// ExternalID is the external identifier for the customer
	ExternalID string `db:"external_id" json:"external_id"`

	// Name is the display name of the customer
	Name string `db:"name" json:"name"`

	// Email is the email of the customer
	Email string `db:"email" json:"email"`

	// Phone is the phone number used for whatsapp delivery
	Phone string `db:"phone" json:"phone"`

	// Type distinguishes individual shoppers from business accounts
	Type types.CustomerType `db:"type" json:"type"`

	// LoyaltyTier is the customer's loyalty program tier
	LoyaltyTier string `db:"loyalty_tier" json:"loyalty_tier"`

	// Metrics is the purchase history summary, updated on order completion
	Metrics Metrics `json:"metrics"`

	// ContactPreferences maps a channel to whether the customer accepts
	// messages on it. A channel missing from the map is treated as accepted;
	// only an explicit false is an opt-out.
	ContactPreferences map[types.Channel]bool `json:"contact_preferences"`

	// Segments is the persisted snapshot of the last computed classification
	Segments []string `json:"segments"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Metrics summarises a customer's purchase history
type Metrics struct {
	TotalOrders       int             `db:"total_orders" json:"total_orders"`
	TotalSpent        decimal.Decimal `db:"total_spent" json:"total_spent"`
	AverageOrderValue decimal.Decimal `db:"average_order_value" json:"average_order_value"`
	FirstPurchaseDate *time.Time      `db:"first_purchase_date" json:"first_purchase_date"`
	LastPurchaseDate  *time.Time      `db:"last_purchase_date" json:"last_purchase_date"`
}

// AcceptsChannel reports whether the customer can be contacted on the given
// channel. Only an explicit opt-out disables a channel.
func (c *Customer) AcceptsChannel(channel types.Channel) bool {
	if c.ContactPreferences == nil {
		return true
	}
	enabled, ok := c.ContactPreferences[channel]
	if !ok {
		return true
	}
	return enabled
}

// RecipientFor returns the address used to reach the customer on a channel
func (c *Customer) RecipientFor(channel types.Channel) string {
	switch channel {
	case types.ChannelEmail:
		return c.Email
	case types.ChannelWhatsApp, types.ChannelSMS:
		return c.Phone
	default:
		return ""
	}
}

// ApplyOrder folds a completed order total into the purchase metrics
func (c *Customer) ApplyOrder(total decimal.Decimal, placedAt time.Time) {
	c.Metrics.TotalOrders++
	c.Metrics.TotalSpent = c.Metrics.TotalSpent.Add(total)
	c.Metrics.AverageOrderValue = c.Metrics.TotalSpent.
		Div(decimal.NewFromInt(int64(c.Metrics.TotalOrders))).
		Round(2)

	if c.Metrics.FirstPurchaseDate == nil || placedAt.Before(*c.Metrics.FirstPurchaseDate) {
		t := placedAt
		c.Metrics.FirstPurchaseDate = &t
	}
	if c.Metrics.LastPurchaseDate == nil || placedAt.After(*c.Metrics.LastPurchaseDate) {
		t := placedAt
		c.Metrics.LastPurchaseDate = &t
	}
	c.UpdatedAt = time.Now().UTC()
}
