package sink

import (
	"bot-bridge/domain/event"
	"bot-bridge/errors"
	"context"
)

// ConnectionSink buffers the events of one real-time connection. The hub
// writes into it without blocking; the transport drains Events.
// The channel is never closed: the writer stops reading once the
// connection is unregistered.
type ConnectionSink struct {
	events chan event.DomainEvent
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ConnectionSink{events: make(chan event.DomainEvent, bufferSize)}
}

// Consume enqueues e, or drops it when the buffer is full.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrBackpressure
	}
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }
