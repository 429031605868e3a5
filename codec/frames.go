// Package codec converts hub events and commands to and from the JSON
// frames exchanged with clients and mirrors.
package codec

import (
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	"bot-bridge/errors"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Inbound frame types. typing-start is the alias used by some clients.
const (
	JoinType           = "join"
	SendMessageType    = "send-message"
	TypingType         = "typing"
	TypingStartType    = "typing-start"
	StopTypingType     = "stop-typing"
	AddReactionType    = "add-reaction"
	RemoveReactionType = "remove-reaction"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageView is the JSON shape of a message.
type MessageView struct {
	ID        int64               `json:"id"`
	From      string              `json:"from"`
	Text      string              `json:"text"`
	Timestamp time.Time           `json:"timestamp"`
	User      domain.UserIdentity `json:"user"`
	Reactions map[string][]string `json:"reactions"`
}

type PresenceView struct {
	User      domain.UserIdentity `json:"user"`
	Timestamp time.Time           `json:"timestamp"`
}

type TypingView struct {
	UserKey string `json:"userKey"`
}

type ReactionView struct {
	MessageID int64    `json:"messageId"`
	Emoji     string   `json:"emoji"`
	UserKeys  []string `json:"userKeys"`
}

type joinPayload struct {
	UserKey string `json:"userKey" validate:"required"`
}

type sendPayload struct {
	Text    string `json:"text" validate:"required"`
	UserKey string `json:"userKey"`
}

type typingPayload struct {
	UserKey string `json:"userKey"`
}

type reactionPayload struct {
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	Emoji     string `json:"emoji" validate:"required"`
	UserKey   string `json:"userKey"`
}

// Encoder renders events; it needs the registry to embed sender identities.
type Encoder struct {
	identities *domain.IdentityRegistry
}

func NewEncoder(identities *domain.IdentityRegistry) *Encoder {
	return &Encoder{identities: identities}
}

func (c *Encoder) MessageView(m domain.Message) MessageView {
	user, err := c.identities.Resolve(m.SenderKey)
	if err != nil {
		user = domain.UserIdentity{Key: m.SenderKey, Name: m.SenderKey}
	}
	return MessageView{
		ID:        int64(m.ID),
		From:      m.SenderKey,
		Text:      m.Text,
		Timestamp: m.CreatedAt,
		User:      user,
		Reactions: m.Reactions.Flatten(),
	}
}

func (c *Encoder) MessageViews(messages []domain.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, c.MessageView(m))
	}
	return views
}

// Payload returns the JSON-ready payload of an event.
func (c *Encoder) Payload(e event.DomainEvent) (any, error) {
	switch evt := e.(type) {
	case event.History:
		return c.MessageViews(evt.Messages), nil
	case event.MessagePosted:
		view := c.MessageView(evt.Message)
		if evt.Sender.Key != "" {
			view.User = evt.Sender
		}
		return view, nil
	case event.UserJoined:
		return PresenceView{User: evt.User, Timestamp: evt.At}, nil
	case event.UserLeft:
		return PresenceView{User: evt.User, Timestamp: evt.At}, nil
	case event.OnlineUsers:
		users := evt.Users
		if users == nil {
			users = []domain.UserIdentity{}
		}
		return users, nil
	case event.TypingStarted:
		return TypingView{UserKey: evt.UserKey}, nil
	case event.TypingStopped:
		return TypingView{UserKey: evt.UserKey}, nil
	case event.ReactionChanged:
		return ReactionView{MessageID: int64(evt.MessageID), Emoji: evt.Emoji, UserKeys: evt.UserKeys}, nil
	case event.MessageEvicted:
		return c.MessageView(evt.Message), nil
	default:
		return nil, fmt.Errorf("%w: no encoding for %T", errors.ErrMalformedPayload, e)
	}
}

// Encode renders an event as a {"type","payload"} frame.
func (c *Encoder) Encode(e event.DomainEvent) ([]byte, error) {
	payload, err := c.Payload(e)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: e.Name(), Payload: raw})
}

// DecodeCommand parses an inbound frame received on conn. Anything that does
// not parse or validate yields ErrMalformedPayload.
func DecodeCommand(conn domain.ConnectionID, data []byte) (domain.Command, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	kind := strings.TrimSpace(frame.Type)
	switch kind {
	case JoinType:
		key, err := decodeJoin(frame.Payload)
		if err != nil {
			return nil, err
		}
		return domain.JoinCommand{Connection: conn, UserKey: key}, nil
	case SendMessageType:
		var p sendPayload
		if err := decode(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.PostMessageCommand{Connection: conn, UserKey: p.UserKey, Text: p.Text}, nil
	case TypingType, TypingStartType, StopTypingType:
		var p typingPayload
		if len(bytes.TrimSpace(frame.Payload)) > 0 {
			if err := decode(frame.Payload, &p); err != nil {
				return nil, err
			}
		}
		return domain.TypingCommand{Connection: conn, UserKey: p.UserKey, Stop: kind == StopTypingType}, nil
	case AddReactionType, RemoveReactionType:
		var p reactionPayload
		if err := decode(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.ReactionCommand{
			Connection: conn,
			MessageID:  domain.MessageID(p.MessageID),
			Emoji:      p.Emoji,
			UserKey:    p.UserKey,
			Remove:     kind == RemoveReactionType,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", errors.ErrMalformedPayload, frame.Type)
	}
}

// decodeJoin accepts {"userKey": "..."} as well as a bare JSON string.
func decodeJoin(raw json.RawMessage) (string, error) {
	var key string
	if err := json.Unmarshal(raw, &key); err == nil {
		if strings.TrimSpace(key) == "" {
			return "", fmt.Errorf("%w: empty user key", errors.ErrMalformedPayload)
		}
		return key, nil
	}
	var p joinPayload
	if err := decode(raw, &p); err != nil {
		return "", err
	}
	return p.UserKey, nil
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return nil
}
