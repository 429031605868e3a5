package storage

import (
	"bot-bridge/domain"
	"cmp"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// MemoryRepository provides no durability; it backs STORAGE_BACKEND=memory and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	messages map[domain.MessageID]domain.Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: make(map[domain.MessageID]domain.Message)}
}

func (r *MemoryRepository) StoreMessage(message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[message.ID] = message.Clone()
	return nil
}

func (r *MemoryRepository) DeleteMessage(id domain.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

func (r *MemoryRepository) LoadMessages() ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := lo.MapToSlice(r.messages, func(_ domain.MessageID, m domain.Message) domain.Message {
		return m.Clone()
	})
	slices.SortFunc(messages, func(a, b domain.Message) int { return cmp.Compare(a.ID, b.ID) })
	return messages, nil
}

func (r *MemoryRepository) Close() error { return nil }
