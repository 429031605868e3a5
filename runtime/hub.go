package runtime

import (
	"bot-bridge/contract"
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	"bot-bridge/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultHistoryLimit = 50
	DefaultSinkTimeout  = 100 * time.Millisecond
	commandBuffer       = 64
)

type HubConfig struct {
	HistoryLimit  int
	TypingTimeout time.Duration
	SinkTimeout   time.Duration
	Scheduler     Scheduler
}

// Stats is a point-in-time view of the hub, readable from any goroutine.
type Stats struct {
	Connections      int
	Online           int
	Messages         int
	Typing           int
	LastID           domain.MessageID
	Dropped          uint64
	PermanentDropped uint64
}

type result struct {
	value any
	err   error
}

type envelope struct {
	command any
	reply   chan result
}

func (e envelope) respond(value any, err error) {
	if e.reply != nil {
		e.reply <- result{value: value, err: err}
	}
}

// connectCommand and expireCommand never leave the runtime package.
type connectCommand struct {
	connection domain.ConnectionID
	sink       contract.EventSink
}

type expireCommand struct {
	connection domain.ConnectionID
	generation uint64
}

type queryCommand func() (any, error)

// Hub owns the message log, the presence tracker and the typing controller.
// Every command, timer expiries included, is handled by the single goroutine
// running Run, and all broadcasts of a command are written to the connection
// sinks before the next command is taken.
type Hub struct {
	log          *slog.Logger
	identities   *domain.IdentityRegistry
	messages     *domain.MessageLog
	presence     *domain.PresenceTracker
	reactions    *domain.ReactionAggregator
	typing       *TypingController
	registry     contract.IRegistry
	moderator    contract.IModerator
	permanent    chan<- event.DomainEvent
	commands     chan envelope
	historyLimit int
	sinkTimeout  time.Duration
	now          func() time.Time

	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once

	connections      atomic.Int64
	online           atomic.Int64
	stored           atomic.Int64
	typingCount      atomic.Int64
	lastID           atomic.Int64
	dropped          atomic.Uint64
	permanentDropped atomic.Uint64
}

func NewHub(log *slog.Logger, identities *domain.IdentityRegistry, messages *domain.MessageLog,
	registry contract.IRegistry, config HubConfig) *Hub {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = DefaultSinkTimeout
	}
	h := &Hub{
		log:          log,
		identities:   identities,
		messages:     messages,
		presence:     domain.NewPresenceTracker(identities),
		reactions:    domain.NewReactionAggregator(messages, identities),
		registry:     registry,
		commands:     make(chan envelope, commandBuffer),
		historyLimit: config.HistoryLimit,
		sinkTimeout:  config.SinkTimeout,
		now:          time.Now,
		stopped:      make(chan struct{}),
	}
	h.typing = NewTypingController(config.TypingTimeout, config.Scheduler, h.expired)
	h.refresh()
	return h
}

// WithModerator censors message text before it is appended.
func (h *Hub) WithModerator(moderator contract.IModerator) *Hub {
	h.moderator = moderator
	return h
}

// WithPermanentSink mirrors state changes to ch without ever blocking on it.
func (h *Hub) WithPermanentSink(ch chan<- event.DomainEvent) *Hub {
	h.permanent = ch
	return h
}

func (h *Hub) Run(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case env := <-h.commands:
			h.dispatch(ctx, env)
		}
	}
}

// Serving reports whether the event loop is currently running.
func (h *Hub) Serving() bool { return h.running.Load() }

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopped)
		h.typing.StopAll()
		h.log.Info("Hub stopped", "connections", h.registry.Len())
	})
}

// dispatch answers the caller even when the handler panics, then lets the
// supervisor restart the loop.
func (h *Hub) dispatch(ctx context.Context, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			env.respond(nil, errors.ErrWorkerPanic)
			panic(r)
		}
	}()
	value, err := h.handle(ctx, env.command)
	h.refresh()
	env.respond(value, err)
}

func (h *Hub) handle(ctx context.Context, command any) (any, error) {
	switch cmd := command.(type) {
	case connectCommand:
		h.connect(ctx, cmd)
		return nil, nil
	case domain.JoinCommand:
		return h.join(ctx, cmd)
	case domain.PostMessageCommand:
		return h.post(ctx, cmd)
	case domain.TypingCommand:
		return nil, h.signalTyping(ctx, cmd)
	case domain.ReactionCommand:
		return h.react(ctx, cmd)
	case domain.DisconnectCommand:
		return nil, h.disconnect(ctx, cmd.Connection)
	case expireCommand:
		h.expire(ctx, cmd)
		return nil, nil
	case queryCommand:
		return cmd()
	default:
		return nil, fmt.Errorf("%w: unknown command %T", errors.ErrMalformedPayload, command)
	}
}

func (h *Hub) submit(ctx context.Context, command any) (any, error) {
	env := envelope{command: command, reply: make(chan result, 1)}
	select {
	case h.commands <- env:
	case <-h.stopped:
		return nil, errors.ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.value, r.err
	case <-h.stopped:
		return nil, errors.ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func call[T any](ctx context.Context, h *Hub, command any) (T, error) {
	var zero T
	value, err := h.submit(ctx, command)
	if err != nil || value == nil {
		return zero, err
	}
	return value.(T), nil
}

func query[T any](ctx context.Context, h *Hub, f func() T) (T, error) {
	return call[T](ctx, h, queryCommand(func() (any, error) { return f(), nil }))
}

// Connect registers sink as a new connection and sends it the recent history
// and the presence snapshot.
func (h *Hub) Connect(ctx context.Context, sink contract.EventSink) (domain.ConnectionID, error) {
	conn := domain.NewConnectionID()
	_, err := h.submit(ctx, connectCommand{connection: conn, sink: sink})
	return conn, err
}

func (h *Hub) Join(ctx context.Context, conn domain.ConnectionID, userKey string) (domain.UserIdentity, error) {
	return call[domain.UserIdentity](ctx, h, domain.JoinCommand{Connection: conn, UserKey: userKey})
}

func (h *Hub) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	return call[domain.Message](ctx, h, cmd)
}

func (h *Hub) Typing(ctx context.Context, cmd domain.TypingCommand) error {
	_, err := h.submit(ctx, cmd)
	return err
}

func (h *Hub) React(ctx context.Context, cmd domain.ReactionCommand) (domain.ReactionChange, error) {
	return call[domain.ReactionChange](ctx, h, cmd)
}

func (h *Hub) Disconnect(ctx context.Context, conn domain.ConnectionID) error {
	_, err := h.submit(ctx, domain.DisconnectCommand{Connection: conn})
	return err
}

func (h *Hub) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	return query(ctx, h, func() []domain.Message { return h.messages.Recent(limit) })
}

func (h *Hub) All(ctx context.Context) ([]domain.Message, error) {
	return query(ctx, h, h.messages.All)
}

func (h *Hub) Since(ctx context.Context, id domain.MessageID) ([]domain.Message, error) {
	return query(ctx, h, func() []domain.Message { return h.messages.Since(id) })
}

func (h *Hub) Find(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	return call[domain.Message](ctx, h, queryCommand(func() (any, error) {
		m, err := h.messages.Find(id)
		if err != nil {
			return nil, err
		}
		return m, nil
	}))
}

func (h *Hub) Online(ctx context.Context) ([]domain.UserIdentity, error) {
	return query(ctx, h, h.presence.Snapshot)
}

// Identities returns the registry content; it is immutable and needs no loop round trip.
func (h *Hub) Identities() []domain.UserIdentity {
	return h.identities.All()
}

// Capacity is the retention of the message log.
func (h *Hub) Capacity() int { return h.messages.Capacity() }

func (h *Hub) HistoryLimit() int { return h.historyLimit }

func (h *Hub) Stats() Stats {
	return Stats{
		Connections:      int(h.connections.Load()),
		Online:           int(h.online.Load()),
		Messages:         int(h.stored.Load()),
		Typing:           int(h.typingCount.Load()),
		LastID:           domain.MessageID(h.lastID.Load()),
		Dropped:          h.dropped.Load(),
		PermanentDropped: h.permanentDropped.Load(),
	}
}

func (h *Hub) refresh() {
	h.connections.Store(int64(h.registry.Len()))
	h.online.Store(int64(len(h.presence.Keys())))
	h.stored.Store(int64(h.messages.Len()))
	h.typingCount.Store(int64(h.typing.Len()))
	h.lastID.Store(int64(h.messages.LastID()))
}

func (h *Hub) connect(ctx context.Context, cmd connectCommand) {
	h.registry.Register(cmd.connection, cmd.sink)
	h.log.Debug("Connection opened", "connection_id", cmd.connection)
	h.deliver(ctx, cmd.connection, event.History{Messages: h.messages.Recent(h.historyLimit)})
	h.deliver(ctx, cmd.connection, event.OnlineUsers{Users: h.presence.Snapshot()})
}

func (h *Hub) join(ctx context.Context, cmd domain.JoinCommand) (domain.UserIdentity, error) {
	if _, ok := h.registry.Sink(cmd.Connection); !ok {
		return domain.UserIdentity{}, fmt.Errorf("%w: %s", errors.ErrConnectionUnknown, cmd.Connection)
	}
	identity, err := h.identities.Resolve(cmd.UserKey)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	if bound, ok := h.presence.Bound(cmd.Connection); ok && bound != identity.Key {
		h.leave(ctx, cmd.Connection)
	}
	_, first, err := h.presence.Join(cmd.Connection, identity.Key)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	if first {
		joined := event.UserJoined{User: identity, At: h.now().UTC()}
		h.broadcast(ctx, joined, "")
		h.publish(joined)
		h.log.Info("User joined", "user_key", identity.Key, "connection_id", cmd.Connection)
	}
	h.broadcast(ctx, event.OnlineUsers{Users: h.presence.Snapshot()}, "")
	return identity, nil
}

func (h *Hub) post(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	key, err := h.senderKey(cmd.Connection, cmd.UserKey)
	if err != nil {
		return domain.Message{}, err
	}
	text := cmd.Text
	if h.moderator != nil {
		text = h.moderator.Censor(text)
	}
	message, evicted, err := h.messages.Append(key, text)
	if err != nil {
		return domain.Message{}, err
	}
	for _, conn := range h.typing.StopUser(message.SenderKey) {
		h.broadcast(ctx, event.TypingStopped{Connection: conn, UserKey: message.SenderKey}, conn)
	}
	sender, _ := h.identities.Resolve(message.SenderKey)
	posted := event.MessagePosted{Message: message, Sender: sender}
	h.broadcast(ctx, posted, "")
	h.publish(posted)
	if evicted != nil {
		h.publish(event.MessageEvicted{Message: *evicted})
	}
	return message, nil
}

func (h *Hub) signalTyping(ctx context.Context, cmd domain.TypingCommand) error {
	if _, ok := h.registry.Sink(cmd.Connection); !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionUnknown, cmd.Connection)
	}
	key, err := h.senderKey(cmd.Connection, cmd.UserKey)
	if err != nil {
		return err
	}
	identity, err := h.identities.Resolve(key)
	if err != nil {
		return err
	}
	if cmd.Stop {
		if stopped, ok := h.typing.Stop(cmd.Connection); ok {
			h.broadcast(ctx, event.TypingStopped{Connection: cmd.Connection, UserKey: stopped}, cmd.Connection)
		}
		return nil
	}
	if previous, ok := h.typing.Key(cmd.Connection); ok && previous != identity.Key {
		h.typing.Stop(cmd.Connection)
		h.broadcast(ctx, event.TypingStopped{Connection: cmd.Connection, UserKey: previous}, cmd.Connection)
	}
	if h.typing.Start(cmd.Connection, identity.Key) {
		started := event.TypingStarted{Connection: cmd.Connection, UserKey: identity.Key}
		h.broadcast(ctx, started, cmd.Connection)
		h.publish(started)
	}
	return nil
}

func (h *Hub) react(ctx context.Context, cmd domain.ReactionCommand) (domain.ReactionChange, error) {
	key, err := h.senderKey(cmd.Connection, cmd.UserKey)
	if err != nil {
		return domain.ReactionChange{}, err
	}
	var change domain.ReactionChange
	if cmd.Remove {
		change, err = h.reactions.Remove(cmd.MessageID, cmd.Emoji, key)
	} else {
		change, err = h.reactions.Add(cmd.MessageID, cmd.Emoji, key)
	}
	if err != nil {
		return domain.ReactionChange{}, err
	}
	changed := event.ReactionChanged{
		MessageID: change.MessageID,
		Emoji:     change.Emoji,
		UserKeys:  change.UserKeys,
		Changed:   change.Changed,
		Message:   change.Message,
	}
	h.broadcast(ctx, changed, "")
	if change.Changed {
		h.publish(changed)
	}
	return change, nil
}

func (h *Hub) disconnect(ctx context.Context, conn domain.ConnectionID) error {
	if !h.registry.Unregister(conn) {
		return fmt.Errorf("%w: %s", errors.ErrConnectionUnknown, conn)
	}
	h.log.Debug("Connection closed", "connection_id", conn)
	if h.leave(ctx, conn) {
		h.broadcast(ctx, event.OnlineUsers{Users: h.presence.Snapshot()}, "")
	}
	return nil
}

// leave unbinds the connection from typing and presence. It reports whether
// the connection was joined.
func (h *Hub) leave(ctx context.Context, conn domain.ConnectionID) bool {
	if key, ok := h.typing.Stop(conn); ok {
		h.broadcast(ctx, event.TypingStopped{Connection: conn, UserKey: key}, conn)
	}
	identity, last, ok := h.presence.Leave(conn)
	if !ok {
		return false
	}
	if last {
		left := event.UserLeft{User: identity, At: h.now().UTC()}
		h.broadcast(ctx, left, "")
		h.publish(left)
		h.log.Info("User left", "user_key", identity.Key, "connection_id", conn)
	}
	return true
}

func (h *Hub) expire(ctx context.Context, cmd expireCommand) {
	if key, ok := h.typing.Expire(cmd.connection, cmd.generation); ok {
		h.broadcast(ctx, event.TypingStopped{Connection: cmd.connection, UserKey: key}, cmd.connection)
	}
}

// expired runs on the scheduler goroutine and hands the firing to the loop.
func (h *Hub) expired(conn domain.ConnectionID, generation uint64) {
	select {
	case h.commands <- envelope{command: expireCommand{connection: conn, generation: generation}}:
	case <-h.stopped:
	}
}

// senderKey resolves who acts for a command. A connection that joined acts
// as its bound key; the request surface always names the sender.
func (h *Hub) senderKey(conn domain.ConnectionID, userKey string) (string, error) {
	key := domain.NormalizeKey(userKey)
	if conn == "" {
		if key == "" {
			return "", fmt.Errorf("%w: no sender", errors.ErrUnknownSender)
		}
		return key, nil
	}
	bound, ok := h.presence.Bound(conn)
	switch {
	case ok && key == "":
		return bound, nil
	case ok && key != bound:
		return "", fmt.Errorf("%w: joined as %q, got %q", errors.ErrSenderMismatch, bound, key)
	case !ok && key == "":
		return "", errors.ErrNotJoined
	}
	return key, nil
}

func (h *Hub) broadcast(ctx context.Context, e event.DomainEvent, except domain.ConnectionID) {
	for _, conn := range h.registry.Connections() {
		if conn == except {
			continue
		}
		h.deliver(ctx, conn, e)
	}
}

func (h *Hub) deliver(ctx context.Context, conn domain.ConnectionID, e event.DomainEvent) {
	sink, ok := h.registry.Sink(conn)
	if !ok {
		return
	}
	sinkCtx, cancel := context.WithTimeout(ctx, h.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, e); err != nil {
		h.dropped.Add(1)
		h.log.Debug("Event dropped for connection", "connection_id", conn, "event", e.Name(), "error", err)
	}
}

func (h *Hub) publish(e event.DomainEvent) {
	if h.permanent == nil {
		return
	}
	select {
	case h.permanent <- e:
	default:
		h.permanentDropped.Add(1)
		h.log.Warn("Permanent sink saturated, event lost", "event", e.Name())
	}
}
