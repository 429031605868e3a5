//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"bot-bridge/domain"
	"bot-bridge/errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// IMessageRepository mirrors the message log. Every write is idempotent:
// storing an id twice keeps the last version.
type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	DeleteMessage(id domain.MessageID) error
	// LoadMessages returns every stored message ordered by id.
	LoadMessages() ([]domain.Message, error)
	Close() error
}

type Options struct {
	Backend          string
	BadgerFilepath   string
	SnapshotFilepath string
	Retention        int
	Debug            bool
}

// Open builds the repository selected by Options.Backend.
func Open(options Options, log *slog.Logger) (IMessageRepository, error) {
	switch strings.ToLower(strings.TrimSpace(options.Backend)) {
	case "", BackendBadger:
		db, err := badger.Open(BadgerOptions(options.BadgerFilepath, options.Debug))
		if err != nil {
			return nil, fmt.Errorf("%w: badger open: %v", errors.ErrPersistence, err)
		}
		return NewMessageRepository(db, log), nil
	case BackendFile:
		return NewSnapshotRepository(options.SnapshotFilepath, options.Retention, log)
	case BackendMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, options.Backend)
	}
}

func BadgerOptions(path string, debug bool) badger.Options {
	options := badger.DefaultOptions(path)
	if debug {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
