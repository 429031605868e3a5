package sink

import (
	"bot-bridge/domain/event"
	"bot-bridge/infrastructure/search"
	"context"
)

// SearchSink keeps the full-text index aligned with the retained messages.
type SearchSink struct {
	index search.ISearchIndex
}

func NewSearchSink(index search.ISearchIndex) SearchSink {
	return SearchSink{index: index}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return s.index.IndexMessage(evt.Message)
	case event.MessageEvicted:
		return s.index.DeleteMessage(evt.Message.ID)
	default:
		return nil
	}
}
