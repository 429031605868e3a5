package sink

import (
	"bot-bridge/domain/event"
	"context"
)

type EventCounter interface {
	CountEvent(eventType string)
}

// MetricsSink counts state changes by type.
type MetricsSink struct {
	counter EventCounter
}

func NewMetricsSink(counter EventCounter) MetricsSink {
	return MetricsSink{counter: counter}
}

func (s MetricsSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.counter.CountEvent(e.Name())
	return nil
}
