//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound events. Implementations must not block the
// caller beyond the context deadline.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks the sink of every open connection.
type IRegistry interface {
	Register(conn domain.ConnectionID, sink EventSink)
	Unregister(conn domain.ConnectionID) bool
	Sink(conn domain.ConnectionID) (EventSink, bool)
	Connections() []domain.ConnectionID
	Len() int
}

// IModerator rewrites message text before it is stored.
type IModerator interface {
	Censor(text string) string
}

// IPublisher forwards an encoded event to an external broker.
type IPublisher interface {
	Publish(ctx context.Context, eventType string, data []byte) error
}
