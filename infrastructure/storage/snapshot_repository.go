package storage

import (
	"bot-bridge/domain"
	"bot-bridge/errors"
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

type snapshotRecord struct {
	ID        int64               `json:"id"`
	From      string              `json:"from"`
	Text      string              `json:"text"`
	Timestamp time.Time           `json:"timestamp"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// SnapshotRepository serializes the whole collection to one JSON file on
// every change. The file is replaced atomically (temp file + rename). Only
// one process may write a given path.
type SnapshotRepository struct {
	mu        sync.Mutex
	path      string
	retention int
	messages  []domain.Message
	log       *slog.Logger
}

func NewSnapshotRepository(path string, retention int, log *slog.Logger) (*SnapshotRepository, error) {
	if retention <= 0 {
		retention = domain.DefaultRetention
	}
	r := &SnapshotRepository{path: path, retention: retention, log: log}
	messages, err := r.read()
	if err != nil {
		return nil, err
	}
	r.messages = messages
	return r, nil
}

func (r *SnapshotRepository) StoreMessage(message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := slices.BinarySearchFunc(r.messages, message.ID, func(m domain.Message, id domain.MessageID) int {
		return cmp.Compare(m.ID, id)
	})
	if found {
		r.messages[i] = message.Clone()
	} else {
		r.messages = slices.Insert(r.messages, i, message.Clone())
	}
	if overflow := len(r.messages) - r.retention; overflow > 0 {
		r.messages = slices.Delete(r.messages, 0, overflow)
	}
	return r.save()
}

func (r *SnapshotRepository) DeleteMessage(id domain.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.messages)
	r.messages = slices.DeleteFunc(r.messages, func(m domain.Message) bool { return m.ID == id })
	if len(r.messages) == before {
		return nil
	}
	return r.save()
}

func (r *SnapshotRepository) LoadMessages() ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (r *SnapshotRepository) Close() error { return nil }

func (r *SnapshotRepository) read() ([]domain.Message, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", errors.ErrPersistence, r.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", errors.ErrPersistence, r.path, err)
	}
	messages := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, domain.Message{
			ID:        domain.MessageID(rec.ID),
			SenderKey: rec.From,
			Text:      rec.Text,
			CreatedAt: rec.Timestamp,
			Reactions: domain.ReactionsFrom(rec.Reactions),
		})
	}
	slices.SortFunc(messages, func(a, b domain.Message) int { return cmp.Compare(a.ID, b.ID) })
	return messages, nil
}

// save writes the snapshot to disk atomically.
func (r *SnapshotRepository) save() error {
	records := make([]snapshotRecord, 0, len(r.messages))
	for _, m := range r.messages {
		records = append(records, snapshotRecord{
			ID:        int64(m.ID),
			From:      m.SenderKey,
			Text:      m.Text,
			Timestamp: m.CreatedAt,
			Reactions: m.Reactions.Flatten(),
		})
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename temp file: %v", errors.ErrPersistence, err)
	}
	r.log.Debug("Snapshot written", "path", r.path, "messages", len(records))
	return nil
}
