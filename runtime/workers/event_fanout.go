package workers

import (
	"bot-bridge/contract"
	"bot-bridge/domain/event"
	"context"
	"log/slog"
	"time"
)

const DefaultSinkTimeout = 2 * time.Second

// EventFanout drains the hub's permanent channel into the permanent sinks
// (storage, search, metrics, mirror).
//
// Sinks receive events one at a time in publication order, so a store sees a
// message before its reaction changes and its eviction. Every call is bounded
// by the sink timeout; a failing sink is logged and never retried.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	failures    FailureCounter
}

// FailureCounter is told about every failed sink call.
type FailureCounter interface {
	SinkFailed()
}

func NewEventFanout(log *slog.Logger, events chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) WithFailureCounter(counter FailureCounter) *EventFanout {
	w.failures = counter
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Context done, permanent fan-out stopped")
			return nil
		}
	}
}

// Fanout hands one event to every sink.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Permanent sink failed", "event", evt.Name(), "error", err)
			if w.failures != nil {
				w.failures.SinkFailed()
			}
		}
		cancel()
	}
}

// drain flushes what is already queued so a clean shutdown keeps the last writes.
func (w *EventFanout) drain() {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(context.Background(), evt)
		default:
			return
		}
	}
}
