package domain

import (
	"bot-bridge/errors"
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultRetention is the number of messages kept when none is configured.
const DefaultRetention = 100

// MessageLog is a bounded, append-only sequence of messages backed by a
// fixed-capacity ring buffer. The oldest message is evicted once the
// capacity is reached. Ids are assigned from a counter and strictly increase
// in insertion order.
//
// MessageLog is not safe for concurrent use; the hub owns it.
type MessageLog struct {
	registry  *IdentityRegistry
	buf       []*Message
	head      int
	size      int
	lastID    MessageID
	maxLength int
	now       func() time.Time
}

func NewMessageLog(registry *IdentityRegistry, capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	return &MessageLog{
		registry: registry,
		buf:      make([]*Message, capacity),
		now:      time.Now,
	}
}

// WithMaxLength bounds the number of runes accepted per message; 0 disables the check.
func (l *MessageLog) WithMaxLength(maxLength int) *MessageLog {
	l.maxLength = maxLength
	return l
}

// WithClock replaces the time source used for CreatedAt.
func (l *MessageLog) WithClock(now func() time.Time) *MessageLog {
	l.now = now
	return l
}

func (l *MessageLog) Capacity() int { return len(l.buf) }

func (l *MessageLog) Len() int { return l.size }

// LastID returns the id of the most recently appended message, 0 when empty.
func (l *MessageLog) LastID() MessageID { return l.lastID }

// Restore seeds the log with previously persisted messages. Messages are
// sorted by id, duplicate ids collapse to their first occurrence and only
// the newest Capacity() are retained. The id counter resumes after the
// highest id seen. It returns the messages that did not fit.
func (l *MessageLog) Restore(messages []Message) []Message {
	sorted := slices.Clone(messages)
	slices.SortStableFunc(sorted, func(a, b Message) int { return cmp.Compare(a.ID, b.ID) })
	sorted = slices.CompactFunc(sorted, func(a, b Message) bool { return a.ID == b.ID })
	// ids already in the log are neither restored nor dropped
	sorted = slices.DeleteFunc(sorted, func(m Message) bool { return m.ID <= l.lastID })

	var dropped []Message
	if overflow := len(sorted) - len(l.buf); overflow > 0 {
		dropped = sorted[:overflow]
		sorted = sorted[overflow:]
	}
	for _, m := range sorted {
		if m.Reactions == nil {
			m.Reactions = make(Reactions)
		}
		m.SenderKey = NormalizeKey(m.SenderKey)
		l.push(m)
		l.lastID = m.ID
	}
	return dropped
}

// Append validates and stores a new message. evicted is the message dropped
// to make room, nil while the log is below capacity.
func (l *MessageLog) Append(senderKey, text string) (Message, *Message, error) {
	identity, err := l.registry.Resolve(senderKey)
	if err != nil {
		return Message{}, nil, err
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, nil, errors.ErrEmptyContent
	}
	if l.maxLength > 0 && utf8.RuneCountInString(text) > l.maxLength {
		return Message{}, nil, fmt.Errorf("%w: %d runes, limit %d",
			errors.ErrContentTooLong, utf8.RuneCountInString(text), l.maxLength)
	}

	l.lastID++
	message := Message{
		ID:        l.lastID,
		SenderKey: identity.Key,
		Text:      text,
		CreatedAt: l.now().UTC(),
		Reactions: make(Reactions),
	}
	evicted := l.push(message)
	return message.Clone(), evicted, nil
}

// push writes m at the tail, overwriting the oldest slot once full.
func (l *MessageLog) push(m Message) *Message {
	stored := m
	if l.size < len(l.buf) {
		l.buf[(l.head+l.size)%len(l.buf)] = &stored
		l.size++
		return nil
	}
	oldest := l.buf[l.head]
	l.buf[l.head] = &stored
	l.head = (l.head + 1) % len(l.buf)
	evicted := oldest.Clone()
	return &evicted
}

// at returns the i-th message in arrival order, 0 being the oldest.
func (l *MessageLog) at(i int) *Message {
	return l.buf[(l.head+i)%len(l.buf)]
}

// Recent returns the newest limit messages, oldest first.
func (l *MessageLog) Recent(limit int) []Message {
	if limit <= 0 {
		return []Message{}
	}
	if limit > l.size {
		limit = l.size
	}
	return l.slice(l.size-limit, l.size)
}

// All returns the whole log in arrival order.
func (l *MessageLog) All() []Message {
	return l.slice(0, l.size)
}

// Since returns every message whose id is strictly greater than id.
func (l *MessageLog) Since(id MessageID) []Message {
	start := sort.Search(l.size, func(i int) bool { return l.at(i).ID > id })
	return l.slice(start, l.size)
}

// Find returns a copy of the message with the given id.
func (l *MessageLog) Find(id MessageID) (Message, error) {
	m, err := l.lookup(id)
	if err != nil {
		return Message{}, err
	}
	return m.Clone(), nil
}

func (l *MessageLog) lookup(id MessageID) (*Message, error) {
	i := sort.Search(l.size, func(i int) bool { return l.at(i).ID >= id })
	if i < l.size && l.at(i).ID == id {
		return l.at(i), nil
	}
	return nil, fmt.Errorf("%w: %d", errors.ErrMessageNotFound, id)
}

func (l *MessageLog) slice(from, to int) []Message {
	out := make([]Message, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, l.at(i).Clone())
	}
	return out
}
