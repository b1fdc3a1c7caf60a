package cart

import (
	"context"
	"time"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Repository defines the interface for cart data access
type Repository interface {
	Create(ctx context.Context, cart *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
	Update(ctx context.Context, cart *Cart) error

	// UpdateIfStatus persists the cart only while its stored status still
	// matches expected. A sweeper that loses the race gets a conflict error
	// instead of silently overwriting a peer's transition.
	UpdateIfStatus(ctx context.Context, cart *Cart, expected types.CartStatus) error

	// ListActiveInactiveSince returns active carts holding at least one item
	// whose last activity is strictly before the cutoff. This is the input
	// to the abandonment sweep; already-abandoned carts are never returned.
	ListActiveInactiveSince(ctx context.Context, cutoff time.Time) ([]*Cart, error)

	ListByStatus(ctx context.Context, status types.CartStatus) ([]*Cart, error)
}
