package sink

import (
	"bot-bridge/codec"
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	"bot-bridge/errors"
	"bot-bridge/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConnectionSink_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a connection buffer of two events
	s := NewConnectionSink(2)
	req.NoError(s.Consume(ctx, event.OnlineUsers{}))
	req.NoError(s.Consume(ctx, event.TypingStarted{UserKey: "luna"}))

	// When a third event arrives before the writer drains
	err := s.Consume(ctx, event.TypingStopped{UserKey: "luna"})

	// Then it is dropped without blocking and the order is kept
	req.ErrorIs(err, errors.ErrBackpressure)
	req.Equal(event.OnlineUsersType, (<-s.Events()).Name())
	req.Equal(event.TypingStartedType, (<-s.Events()).Name())
	req.NoError(s.Consume(ctx, event.TypingStopped{UserKey: "luna"}))
}

func TestDiskSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	s := NewDiskSink(repository, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()
	message := domain.Message{ID: 4, SenderKey: "bobo", Text: "hi"}

	gomock.InOrder(
		repository.EXPECT().StoreMessage(message).Return(nil),
		repository.EXPECT().StoreMessage(message).Return(nil),
		repository.EXPECT().DeleteMessage(domain.MessageID(4)).Return(errors.ErrPersistence),
	)

	req.NoError(s.Consume(ctx, event.MessagePosted{Message: message}))
	req.NoError(s.Consume(ctx, event.ReactionChanged{MessageID: 4, Changed: true, Message: message}))
	req.ErrorIs(s.Consume(ctx, event.MessageEvicted{Message: message}), errors.ErrPersistence)
	// presence is not persisted
	req.NoError(s.Consume(ctx, event.UserJoined{}))
}

func TestSearchSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	index := mocks.NewMockISearchIndex(ctrl)
	s := NewSearchSink(index)
	ctx := context.Background()
	message := domain.Message{ID: 9, SenderKey: "luna", Text: "deploy done"}

	index.EXPECT().IndexMessage(message).Return(nil)
	index.EXPECT().DeleteMessage(domain.MessageID(9)).Return(nil)

	req.NoError(s.Consume(ctx, event.MessagePosted{Message: message}))
	req.NoError(s.Consume(ctx, event.MessageEvicted{Message: message}))
	req.NoError(s.Consume(ctx, event.ReactionChanged{MessageID: 9}))
}

func TestMirrorSink_PublishesFrame(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	identities, err := domain.NewIdentityRegistry(domain.DefaultIdentities)
	req.NoError(err)
	s := NewMirrorSink(publisher, codec.NewEncoder(identities))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	publisher.EXPECT().
		Publish(gomock.Any(), event.UserJoinedType, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte) error {
			req.JSONEq(`{"type":"user-joined","payload":{"user":{"key":"luna","name":"Luna","color":"#7B68EE","avatar":"✨","type":"bot"},"timestamp":"2026-03-01T12:00:00Z"}}`, string(data))
			return nil
		})

	req.NoError(s.Consume(context.Background(), event.UserJoined{User: domain.DefaultIdentities[0], At: at}))
}

type countingEvents map[string]int

func (c countingEvents) CountEvent(eventType string) { c[eventType]++ }

func TestMetricsSink(t *testing.T) {
	req := require.New(t)
	counter := countingEvents{}
	s := NewMetricsSink(counter)

	req.NoError(s.Consume(context.Background(), event.MessagePosted{}))
	req.NoError(s.Consume(context.Background(), event.MessagePosted{}))
	req.NoError(s.Consume(context.Background(), event.UserLeft{}))

	req.Equal(countingEvents{event.MessagePostedType: 2, event.UserLeftType: 1}, counter)
}
