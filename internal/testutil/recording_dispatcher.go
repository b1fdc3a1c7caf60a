package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cartpulse/cartpulse/internal/dispatch"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// RecordingDispatcher implements dispatch.Dispatcher, recording every send
// and optionally failing selected channels
type RecordingDispatcher struct {
	mu       sync.Mutex
	requests []*dispatch.Request
	failing  map[types.Channel]error
	counter  int
}

// NewRecordingDispatcher creates a new recording dispatcher
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{
		failing: make(map[types.Channel]error),
	}
}

func (d *RecordingDispatcher) Send(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failing[req.Channel]; ok {
		return nil, ierr.WithError(err).
			WithHintf("Dispatch on %s failed", req.Channel).
			Mark(ierr.ErrDispatch)
	}

	d.counter++
	d.requests = append(d.requests, req)
	return &dispatch.Result{
		MessageID: fmt.Sprintf("msg-%d", d.counter),
		Accepted:  true,
	}, nil
}

// FailChannel makes every send on the channel return the given error
func (d *RecordingDispatcher) FailChannel(channel types.Channel, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[channel] = err
}

// Requests returns the recorded sends in order
func (d *RecordingDispatcher) Requests() []*dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*dispatch.Request(nil), d.requests...)
}

// RequestsForChannel returns the recorded sends on one channel
func (d *RecordingDispatcher) RequestsForChannel(channel types.Channel) []*dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	var matched []*dispatch.Request
	for _, req := range d.requests {
		if req.Channel == channel {
			matched = append(matched, req)
		}
	}
	return matched
}

// Clear drops the recorded sends
func (d *RecordingDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = nil
	d.counter = 0
}
