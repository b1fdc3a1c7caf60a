package customer

import (
	"context"
)

// Repository defines the interface for customer data access
type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error

	// UpdateSegments persists the segments snapshot computed by the
	// segmentation engine without touching other fields
	UpdateSegments(ctx context.Context, id string, segments []string) error

	// CountMessages returns the number of messages exchanged with the
	// customer, used by the engagement rule
	CountMessages(ctx context.Context, id string) (int64, error)
}
