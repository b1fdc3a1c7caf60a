package template

import (
	"context"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Repository defines the interface for message template lookup
type Repository interface {
	Get(ctx context.Context, id string) (*MessageTemplate, error)

	// FindByTags returns an active template for the channel and category
	// carrying every one of the given tags. A miss is reported with
	// ErrTemplateNotFound; callers treat it as non-fatal and skip the
	// channel.
	FindByTags(ctx context.Context, channel types.Channel, category string, tags []string) (*MessageTemplate, error)
}
