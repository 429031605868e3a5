package sink

import (
	"bot-bridge/domain/event"
	"bot-bridge/infrastructure/storage"
	"context"
	"log/slog"
)

// DiskSink mirrors the message log into a repository.
type DiskSink struct {
	repository storage.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository storage.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return d.repository.StoreMessage(evt.Message)
	case event.ReactionChanged:
		return d.repository.StoreMessage(evt.Message)
	case event.MessageEvicted:
		d.log.Debug("Deleting evicted message", "message_id", evt.Message.ID)
		return d.repository.DeleteMessage(evt.Message.ID)
	default:
		return nil
	}
}
