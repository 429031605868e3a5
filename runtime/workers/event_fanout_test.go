package workers

import (
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	"bot-bridge/errors"
	"bot-bridge/mocks"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type failureCount struct {
	n atomic.Int32
}

func (f *failureCount) SinkFailed() { f.n.Add(1) }

func TestEventFanout_Fanout(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	evt := event.MessagePosted{Message: domain.Message{ID: 1, SenderKey: "luna", Text: "hi"}}

	// Given two permanent sinks
	// Then each receives the event once, in registration order
	gomock.InOrder(
		first.EXPECT().Consume(gomock.Any(), evt).Return(nil),
		second.EXPECT().Consume(gomock.Any(), evt).Return(nil),
	)

	fanout := NewEventFanout(log, make(chan event.DomainEvent, 1), time.Second).Add(first, second)

	// When an event is handed out
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	next := mocks.NewMockEventSink(ctrl)
	failures := &failureCount{}

	// Given a sink that never returns before its deadline
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		})
	// Then the following sink is still served
	next.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)

	fanout := NewEventFanout(log, make(chan event.DomainEvent, 1), 20*time.Millisecond).
		Add(slow, next).
		WithFailureCounter(failures)

	start := time.Now()
	fanout.Fanout(context.Background(), event.UserLeft{})

	req.Less(time.Since(start), time.Second)
	req.Equal(int32(1), failures.n.Load())
}

func TestEventFanout_RunDrainsOnShutdown(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockEventSink(ctrl)
	var consumed atomic.Int32
	store.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, event.DomainEvent) error {
			consumed.Add(1)
			return errors.ErrPersistence
		}).
		Times(3)

	// Given three events already queued and a canceled context
	events := make(chan event.DomainEvent, 3)
	for id := range 3 {
		events <- event.MessageEvicted{Message: domain.Message{ID: domain.MessageID(id + 1)}}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the worker runs
	err := NewEventFanout(log, events, time.Second).Add(store).Run(ctx)

	// Then every queued event still reached the sink, failures included
	req.NoError(err)
	req.Equal(int32(3), consumed.Load())
	req.Empty(events)
}
