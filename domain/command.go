package domain

// Command is an inbound event handled by the hub.
type Command interface {
	Name() string
}

type JoinCommand struct {
	Connection ConnectionID
	UserKey    string
}

func (JoinCommand) Name() string { return "join" }

// PostMessageCommand comes either from a connection or, with an empty
// Connection, from the request surface.
type PostMessageCommand struct {
	Connection ConnectionID
	UserKey    string
	Text       string
}

func (PostMessageCommand) Name() string { return "send-message" }

type TypingCommand struct {
	Connection ConnectionID
	UserKey    string
	// Stop requests an explicit Typing -> Idle transition.
	Stop bool
}

func (c TypingCommand) Name() string {
	if c.Stop {
		return "stop-typing"
	}
	return "typing"
}

type ReactionCommand struct {
	Connection ConnectionID
	MessageID  MessageID
	Emoji      string
	UserKey    string
	Remove     bool
}

func (c ReactionCommand) Name() string {
	if c.Remove {
		return "remove-reaction"
	}
	return "add-reaction"
}

type DisconnectCommand struct {
	Connection ConnectionID
}

func (DisconnectCommand) Name() string { return "disconnect" }
