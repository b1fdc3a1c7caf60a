package sales

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
)

// Event is an ephemeral sales record derived from a completed order. Events
// live only in the sliding window and expire after the retention period via
// score-based pruning; durable daily counters are kept separately.
type Event struct {
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	ItemCount  int             `json:"item_count"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Score is the sorted-set score of the event: unix seconds with fraction
func (e *Event) Score() float64 {
	return float64(e.Timestamp.UnixNano()) / 1e9
}

// Marshal encodes the event as a sorted-set member
func (e *Event) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to marshal sales event").
			Mark(ierr.ErrSystem)
	}
	return string(b), nil
}

// Unmarshal decodes a sorted-set member back into an event
func Unmarshal(member string) (*Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(member), &e); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Corrupt sales event in window").
			Mark(ierr.ErrSystem)
	}
	return &e, nil
}
