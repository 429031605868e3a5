package storage

import (
	"bot-bridge/domain"
	"bot-bridge/errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const messagePrefix = "msg:"

// MessageRepository keeps one Badger key per retained message.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// MessageKey is formatted as "msg:{id}" with 19-digit zero padding so the
// lexicographical order of keys is the id order.
func MessageKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%019d", messagePrefix, id))
}

// ParseMessageKey is the inverse of MessageKey.
func ParseMessageKey(key []byte) (domain.MessageID, bool) {
	s, ok := strings.CutPrefix(string(key), messagePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return domain.MessageID(id), true
}

func (r *MessageRepository) StoreMessage(message domain.Message) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MessageKey(message.ID), MarshalMessage(message))
	})
	if err != nil {
		return fmt.Errorf("%w: store message %d: %v", errors.ErrPersistence, message.ID, err)
	}
	return nil
}

func (r *MessageRepository) DeleteMessage(id domain.MessageID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MessageKey(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete message %d: %v", errors.ErrPersistence, id, err)
	}
	return nil
}

// LoadMessages scans the "msg:" prefix; keys come back in id order.
func (r *MessageRepository) LoadMessages() ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				message, err := UnmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				r.log.Warn("Skipping unreadable record", "key", string(item.Key()), "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

// DB exposes the handle for the debug inspector.
func (r *MessageRepository) DB() *badger.DB { return r.db }

func (r *MessageRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	return r.db.Close()
}
