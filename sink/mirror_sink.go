package sink

import (
	"bot-bridge/codec"
	"bot-bridge/contract"
	"bot-bridge/domain/event"
	"context"
)

// MirrorSink publishes every state change as a JSON frame.
type MirrorSink struct {
	publisher contract.IPublisher
	encoder   *codec.Encoder
}

func NewMirrorSink(publisher contract.IPublisher, encoder *codec.Encoder) MirrorSink {
	return MirrorSink{publisher: publisher, encoder: encoder}
}

func (s MirrorSink) Consume(ctx context.Context, e event.DomainEvent) error {
	data, err := s.encoder.Encode(e)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, e.Name(), data)
}
