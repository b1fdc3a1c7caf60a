package recoveryplan

import (
	"time"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Plan is the derived, cache-resident recovery artifact for one abandonment
// episode of one cart. Plans are recomputed, not appended to, each time a
// cart re-enters abandonment.
type Plan struct {
	ID         string `json:"id"`
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`

	// Variants maps experiment name → assigned variant
	Variants map[string]string `json:"variants"`

	// Attempts in increasing ScheduledFor order
	Attempts []Attempt `json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
}

// Attempt is one scheduled, channel-targeted send
type Attempt struct {
	ID string `json:"id"`

	// Sequence is the 1-based position within the plan
	Sequence int `json:"sequence"`

	// ScheduledFor is an absolute timestamp; attempts for a single cart
	// execute in increasing ScheduledFor order
	ScheduledFor time.Time `json:"scheduled_for"`

	// Channels is the intersection of the interval's default channels and
	// the customer's allowed channels; never empty (empty intersections are
	// omitted from the plan entirely)
	Channels []types.Channel `json:"channels"`
}

// FindAttempt returns the attempt with the given id
func (p *Plan) FindAttempt(attemptID string) (*Attempt, bool) {
	for i := range p.Attempts {
		if p.Attempts[i].ID == attemptID {
			return &p.Attempts[i], true
		}
	}
	return nil, false
}
