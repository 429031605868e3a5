//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"bot-bridge/contract"
	"bot-bridge/domain"
	"bot-bridge/errors"
	"bot-bridge/infrastructure/search"
	"bot-bridge/runtime"
	"context"
	"fmt"
	"log/slog"
)

// IChatService is what the transports need from the relay.
type IChatService interface {
	Connect(ctx context.Context, sink contract.EventSink) (domain.ConnectionID, error)
	Disconnect(ctx context.Context, conn domain.ConnectionID) error
	// Dispatch runs a command decoded from a real-time frame.
	Dispatch(ctx context.Context, cmd domain.Command) error
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	React(ctx context.Context, cmd domain.ReactionCommand) (domain.ReactionChange, error)
	Recent(ctx context.Context, limit int) ([]domain.Message, error)
	All(ctx context.Context) ([]domain.Message, error)
	Since(ctx context.Context, id domain.MessageID) ([]domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Message, error)
	Online(ctx context.Context) ([]domain.UserIdentity, error)
	Identities() []domain.UserIdentity
	Stats() runtime.Stats
}

type ChatService struct {
	hub   *runtime.Hub
	index search.ISearchIndex
	log   *slog.Logger
}

// NewChatService wraps the hub; index may be nil when search is disabled.
func NewChatService(hub *runtime.Hub, index search.ISearchIndex, log *slog.Logger) *ChatService {
	return &ChatService{hub: hub, index: index, log: log}
}

func (s *ChatService) Connect(ctx context.Context, sink contract.EventSink) (domain.ConnectionID, error) {
	return s.hub.Connect(ctx, sink)
}

func (s *ChatService) Disconnect(ctx context.Context, conn domain.ConnectionID) error {
	return s.hub.Disconnect(ctx, conn)
}

func (s *ChatService) Dispatch(ctx context.Context, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.JoinCommand:
		_, err := s.hub.Join(ctx, c.Connection, c.UserKey)
		return err
	case domain.PostMessageCommand:
		_, err := s.hub.PostMessage(ctx, c)
		return err
	case domain.TypingCommand:
		return s.hub.Typing(ctx, c)
	case domain.ReactionCommand:
		_, err := s.hub.React(ctx, c)
		return err
	case domain.DisconnectCommand:
		return s.hub.Disconnect(ctx, c.Connection)
	default:
		return fmt.Errorf("%w: unsupported command %s", errors.ErrMalformedPayload, cmd.Name())
	}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	return s.hub.PostMessage(ctx, cmd)
}

func (s *ChatService) React(ctx context.Context, cmd domain.ReactionCommand) (domain.ReactionChange, error) {
	return s.hub.React(ctx, cmd)
}

func (s *ChatService) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	return s.hub.Recent(ctx, limit)
}

func (s *ChatService) All(ctx context.Context) ([]domain.Message, error) {
	return s.hub.All(ctx)
}

func (s *ChatService) Since(ctx context.Context, id domain.MessageID) ([]domain.Message, error) {
	return s.hub.Since(ctx, id)
}

// Search resolves index hits against the log; hits already evicted are skipped.
func (s *ChatService) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	if s.index == nil {
		return nil, errors.ErrSearchDisabled
	}
	ids, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.hub.Find(ctx, id)
		if errors.Is(err, errors.ErrMessageNotFound) {
			s.log.Debug("Search hit no longer retained", "message_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *ChatService) Online(ctx context.Context) ([]domain.UserIdentity, error) {
	return s.hub.Online(ctx)
}

func (s *ChatService) Identities() []domain.UserIdentity {
	return s.hub.Identities()
}

func (s *ChatService) Stats() runtime.Stats {
	return s.hub.Stats()
}
