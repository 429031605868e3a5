package event

import (
	"bot-bridge/domain"
	"time"
)

// Wire names of outbound events.
const (
	HistoryType         = "history"
	MessagePostedType   = "message"
	UserJoinedType      = "user-joined"
	UserLeftType        = "user-left"
	OnlineUsersType     = "online-users"
	TypingStartedType   = "typing"
	TypingStoppedType   = "stop-typing"
	ReactionChangedType = "reaction-changed"
	MessageEvictedType  = "message-evicted"
)

type DomainEvent interface {
	Name() string
}

// History is sent privately to a new connection.
type History struct {
	Messages []domain.Message
}

func (History) Name() string { return HistoryType }

type MessagePosted struct {
	Message domain.Message
	Sender  domain.UserIdentity
}

func (MessagePosted) Name() string { return MessagePostedType }

type UserJoined struct {
	User domain.UserIdentity
	At   time.Time
}

func (UserJoined) Name() string { return UserJoinedType }

type UserLeft struct {
	User domain.UserIdentity
	At   time.Time
}

func (UserLeft) Name() string { return UserLeftType }

type OnlineUsers struct {
	Users []domain.UserIdentity
}

func (OnlineUsers) Name() string { return OnlineUsersType }

// TypingStarted and TypingStopped carry the connection owning the typing
// state so that it can be excluded from the broadcast.
type TypingStarted struct {
	Connection domain.ConnectionID
	UserKey    string
}

func (TypingStarted) Name() string { return TypingStartedType }

type TypingStopped struct {
	Connection domain.ConnectionID
	UserKey    string
}

func (TypingStopped) Name() string { return TypingStoppedType }

type ReactionChanged struct {
	MessageID domain.MessageID
	Emoji     string
	UserKeys  []string
	Changed   bool
	Message   domain.Message
}

func (ReactionChanged) Name() string { return ReactionChangedType }

// MessageEvicted never reaches connections; storage sinks use it to drop
// the evicted record.
type MessageEvicted struct {
	Message domain.Message
}

func (MessageEvicted) Name() string { return MessageEvictedType }
