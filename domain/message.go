// Package domain contains core concepts of the relay.
// This file defines Message records and their reaction sets.
// Only reactions are mutated after a message is created.
package domain

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

type MessageID int64

// Message represents a chat entry of the shared channel.
type Message struct {
	ID        MessageID
	SenderKey string
	Text      string
	CreatedAt time.Time
	Reactions Reactions
}

// Clone returns a copy whose reaction sets can be handed to another goroutine.
func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	return m
}

// Reactions maps an emoji to the set of user keys who reacted with it.
// An emoji with no members is never kept.
type Reactions map[string]map[string]struct{}

// Add inserts key into the emoji set and reports whether membership changed.
func (r Reactions) Add(emoji, key string) bool {
	members, ok := r[emoji]
	if !ok {
		members = make(map[string]struct{})
		r[emoji] = members
	}
	if _, exists := members[key]; exists {
		return false
	}
	members[key] = struct{}{}
	return true
}

// Remove deletes key from the emoji set and reports whether membership changed.
func (r Reactions) Remove(emoji, key string) bool {
	members, ok := r[emoji]
	if !ok {
		return false
	}
	if _, exists := members[key]; !exists {
		return false
	}
	delete(members, key)
	if len(members) == 0 {
		delete(r, emoji)
	}
	return true
}

// Members returns the sorted user keys of an emoji, never nil.
func (r Reactions) Members(emoji string) []string {
	keys := lo.Keys(r[emoji])
	slices.Sort(keys)
	if keys == nil {
		return []string{}
	}
	return keys
}

// Flatten returns emoji -> sorted user keys.
func (r Reactions) Flatten() map[string][]string {
	out := make(map[string][]string, len(r))
	for emoji := range r {
		out[emoji] = r.Members(emoji)
	}
	return out
}

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, members := range r {
		set := make(map[string]struct{}, len(members))
		for key := range members {
			set[key] = struct{}{}
		}
		out[emoji] = set
	}
	return out
}

// ReactionsFrom builds a reaction set from its flattened form, dropping
// empty entries.
func ReactionsFrom(flat map[string][]string) Reactions {
	out := make(Reactions, len(flat))
	for emoji, keys := range flat {
		for _, key := range keys {
			out.Add(emoji, key)
		}
	}
	return out
}
