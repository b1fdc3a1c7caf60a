package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/pubsub"
	"github.com/cartpulse/cartpulse/internal/types"
)

// EventPublisher publishes retention events to the notification bus.
// Payloads are JSON; subscribers pick topics from internal/types.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type eventPublisher struct {
	bus    pubsub.Publisher
	logger *logger.Logger
}

// NewEventPublisher creates a new publisher on top of the notification bus
func NewEventPublisher(bus pubsub.PubSub, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		bus:    bus,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to marshal payload for topic %s", topic).
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(types.GenerateUUIDWithPrefix(types.UUIDPrefixEvent), body)
	if err := p.bus.Publish(ctx, topic, msg); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to publish to topic %s", topic).
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published event", "topic", topic, "message_id", msg.UUID)
	return nil
}
