package storage

import (
	"bot-bridge/domain"
	"bot-bridge/errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored record:
//
//	message  { 1: id, 2: sender, 3: text, 4: created_at (unix nanos), 5: reaction... }
//	reaction { 1: emoji, 2: user key... }
const (
	fieldID        protowire.Number = 1
	fieldSender    protowire.Number = 2
	fieldText      protowire.Number = 3
	fieldCreatedAt protowire.Number = 4
	fieldReaction  protowire.Number = 5

	fieldEmoji   protowire.Number = 1
	fieldUserKey protowire.Number = 2
)

// MarshalMessage encodes a message with the protobuf wire format.
// Reactions are written in emoji order so equal messages encode equally.
func MarshalMessage(m domain.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ID))
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendString(b, m.SenderKey)
	b = protowire.AppendTag(b, fieldText, protowire.BytesType)
	b = protowire.AppendString(b, m.Text)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))

	emojis := lo.Keys(m.Reactions)
	slices.Sort(emojis)
	for _, emoji := range emojis {
		var r []byte
		r = protowire.AppendTag(r, fieldEmoji, protowire.BytesType)
		r = protowire.AppendString(r, emoji)
		for _, key := range m.Reactions.Members(emoji) {
			r = protowire.AppendTag(r, fieldUserKey, protowire.BytesType)
			r = protowire.AppendString(r, key)
		}
		b = protowire.AppendTag(b, fieldReaction, protowire.BytesType)
		b = protowire.AppendBytes(b, r)
	}
	return b
}

// UnmarshalMessage decodes a record written by MarshalMessage. Unknown
// fields are skipped.
func UnmarshalMessage(b []byte) (domain.Message, error) {
	m := domain.Message{Reactions: make(domain.Reactions)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, corrupt(n)
		}
		b = b[n:]
		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, corrupt(n)
			}
			m.ID = domain.MessageID(v)
			b = b[n:]
		case num == fieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, corrupt(n)
			}
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		case (num == fieldSender || num == fieldText) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Message{}, corrupt(n)
			}
			if num == fieldSender {
				m.SenderKey = v
			} else {
				m.Text = v
			}
			b = b[n:]
		case num == fieldReaction && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Message{}, corrupt(n)
			}
			if err := unmarshalReaction(v, m.Reactions); err != nil {
				return domain.Message{}, err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, corrupt(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func unmarshalReaction(b []byte, reactions domain.Reactions) error {
	var emoji string
	var keys []string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupt(n)
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldEmoji && num != fieldUserKey) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return corrupt(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return corrupt(n)
		}
		if num == fieldEmoji {
			emoji = v
		} else {
			keys = append(keys, v)
		}
		b = b[n:]
	}
	for _, key := range keys {
		reactions.Add(emoji, key)
	}
	return nil
}

func corrupt(n int) error {
	return fmt.Errorf("%w: corrupted record: %v", errors.ErrPersistence, protowire.ParseError(n))
}
