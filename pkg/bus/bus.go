// Package bus decouples the gateway's request intake from the triage
// workers through a buffered channel.
package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/crestline/triagebot/pkg/triage"
)

// ErrBusClosed is returned when publishing to a closed RequestBus.
var ErrBusClosed = errors.New("request bus closed")

type RequestBus struct {
	requests chan triage.Request
	done     chan struct{}
	closed   atomic.Bool
}

func NewRequestBus() *RequestBus {
	return &RequestBus{
		requests: make(chan triage.Request, 100),
		done:     make(chan struct{}),
	}
}

func (rb *RequestBus) PublishRequest(ctx context.Context, req triage.Request) error {
	if rb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case rb.requests <- req:
		return nil
	case <-rb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rb *RequestBus) ConsumeRequest(ctx context.Context) (triage.Request, bool) {
	select {
	case req, ok := <-rb.requests:
		return req, ok
	case <-rb.done:
		return triage.Request{}, false
	case <-ctx.Done():
		return triage.Request{}, false
	}
}

// Pending reports how many requests are queued but not yet consumed.
func (rb *RequestBus) Pending() int {
	return len(rb.requests)
}

func (rb *RequestBus) Close() {
	if rb.closed.CompareAndSwap(false, true) {
		close(rb.done)
	}
}
