package domain

import (
	"bot-bridge/errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxEmojiRunes bounds a reaction token; composed emoji (flags, ZWJ
// sequences) stay well below it.
const maxEmojiRunes = 16

// ReactionChange is the membership of one (message, emoji) pair after an
// add or remove.
type ReactionChange struct {
	MessageID MessageID
	Emoji     string
	UserKeys  []string
	// Changed is false when the operation was a no-op.
	Changed bool
	// Message is a copy of the target after the change.
	Message Message
}

// ReactionAggregator mutates the reaction sets of messages held by a log.
type ReactionAggregator struct {
	log      *MessageLog
	registry *IdentityRegistry
}

func NewReactionAggregator(log *MessageLog, registry *IdentityRegistry) *ReactionAggregator {
	return &ReactionAggregator{log: log, registry: registry}
}

// Add records that userKey reacted with emoji. Adding twice is a no-op.
func (a *ReactionAggregator) Add(id MessageID, emoji, userKey string) (ReactionChange, error) {
	return a.apply(id, emoji, userKey, Reactions.Add)
}

// Remove withdraws the reaction. Removing a non-member is a no-op.
func (a *ReactionAggregator) Remove(id MessageID, emoji, userKey string) (ReactionChange, error) {
	return a.apply(id, emoji, userKey, Reactions.Remove)
}

func (a *ReactionAggregator) apply(id MessageID, emoji, userKey string,
	op func(Reactions, string, string) bool) (ReactionChange, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return ReactionChange{}, err
	}
	identity, err := a.registry.Resolve(userKey)
	if err != nil {
		return ReactionChange{}, fmt.Errorf("%w: %q", errors.ErrUserNotFound, userKey)
	}
	message, err := a.log.lookup(id)
	if err != nil {
		return ReactionChange{}, err
	}
	changed := op(message.Reactions, emoji, identity.Key)
	return ReactionChange{
		MessageID: id,
		Emoji:     emoji,
		UserKeys:  message.Reactions.Members(emoji),
		Changed:   changed,
		Message:   message.Clone(),
	}, nil
}

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidEmoji, emoji)
	}
	return emoji, nil
}
