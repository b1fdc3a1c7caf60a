package dispatch

import (
	"context"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Router selects a channel-specific dispatcher per request
type Router struct {
	dispatchers map[types.Channel]Dispatcher
}

// NewRouter builds a router over the given channel dispatchers
func NewRouter(email *EmailDispatcher, whatsapp *WhatsAppDispatcher) *Router {
	return &Router{
		dispatchers: map[types.Channel]Dispatcher{
			types.ChannelEmail:    email,
			types.ChannelWhatsApp: whatsapp,
		},
	}
}

func (r *Router) Send(ctx context.Context, req *Request) (*Result, error) {
	d, ok := r.dispatchers[req.Channel]
	if !ok {
		return nil, ierr.NewError("no dispatcher for channel").
			WithHintf("Channel %s has no configured dispatcher", req.Channel).
			Mark(ierr.ErrDispatch)
	}
	return d.Send(ctx, req)
}
