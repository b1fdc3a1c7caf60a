package segment

import (
	"context"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/customer"
	"github.com/cartpulse/cartpulse/internal/domain/order"
)

// Input carries everything a rule may inspect: the customer record and its
// full order history. Rules are pure with respect to Input; any external
// lookup a rule performs must be read-only and scoped to this customer.
type Input struct {
	Customer *customer.Customer
	Orders   []*order.Order

	// Now anchors the time-relative rules. The engine sets it once per
	// classification so every rule measures against the same instant.
	Now time.Time
}

// AsOf returns the classification instant, defaulting to the wall clock when
// the caller left Now unset.
func (in *Input) AsOf() time.Time {
	if in.Now.IsZero() {
		return time.Now().UTC()
	}
	return in.Now
}

// Rule maps a customer (plus order history) to zero or more segment labels.
// Rules are independent and side-effect-free; the engine unions their
// outputs, so the label set never depends on evaluation order.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, input *Input) ([]string, error)
}
