// Package domain contains core concepts of the relay.
// This file defines identities and the registry resolving them.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"bot-bridge/errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "bot"
)

// UserIdentity is immutable for the lifetime of the process.
type UserIdentity struct {
	Key    string `json:"key" yaml:"key"`
	Name   string `json:"name" yaml:"name"`
	Color  string `json:"color" yaml:"color"`
	Avatar string `json:"avatar" yaml:"avatar"`
	Role   Role   `json:"type" yaml:"type"`
}

// DefaultIdentities is the table used when no identities file is configured.
var DefaultIdentities = []UserIdentity{
	{Key: "luna", Name: "Luna", Color: "#7B68EE", Avatar: "✨", Role: RoleAgent},
	{Key: "bobo", Name: "Bobo", Color: "#4CAF50", Avatar: "🤖", Role: RoleAgent},
	{Key: "enfield", Name: "Enfield", Color: "#FF9800", Avatar: "👤", Role: RoleHuman},
}

// IdentityRegistry resolves user keys case-insensitively.
// It is built once and never mutated, so it is safe for concurrent reads.
type IdentityRegistry struct {
	byKey map[string]UserIdentity
	order []string
}

func NewIdentityRegistry(identities []UserIdentity) (*IdentityRegistry, error) {
	r := &IdentityRegistry{byKey: make(map[string]UserIdentity, len(identities))}
	for _, identity := range identities {
		key := NormalizeKey(identity.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: identity without key", errors.ErrValidation)
		}
		if _, ok := r.byKey[key]; ok {
			return nil, fmt.Errorf("%w: duplicate identity %q", errors.ErrValidation, key)
		}
		switch identity.Role {
		case "":
			identity.Role = RoleHuman
		case "agent":
			identity.Role = RoleAgent
		}
		if identity.Role != RoleHuman && identity.Role != RoleAgent {
			return nil, fmt.Errorf("%w: identity %q has unknown type %q", errors.ErrValidation, key, identity.Role)
		}
		if identity.Name == "" {
			identity.Name = identity.Key
		}
		identity.Key = key
		r.byKey[key] = identity
		r.order = append(r.order, key)
	}
	return r, nil
}

// Resolve returns the identity registered under key, ignoring case and
// surrounding spaces.
func (r *IdentityRegistry) Resolve(key string) (UserIdentity, error) {
	identity, ok := r.byKey[NormalizeKey(key)]
	if !ok {
		return UserIdentity{}, fmt.Errorf("%w: %q", errors.ErrUnknownSender, key)
	}
	return identity, nil
}

// All returns identities in registration order.
func (r *IdentityRegistry) All() []UserIdentity {
	return lo.Map(r.order, func(key string, _ int) UserIdentity {
		return r.byKey[key]
	})
}

func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type identitiesFile struct {
	Users []UserIdentity `yaml:"users"`
}

// LoadIdentities reads a YAML file of the form:
//
//	users:
//	  - key: luna
//	    name: Luna
//	    color: "#7B68EE"
//	    avatar: "✨"
//	    type: bot
//
// An empty path yields DefaultIdentities.
func LoadIdentities(path string) ([]UserIdentity, error) {
	if path == "" {
		return DefaultIdentities, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identities file: %w", err)
	}
	var file identitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse identities file: %w", err)
	}
	if len(file.Users) == 0 {
		return nil, fmt.Errorf("%w: identities file %s declares no users", errors.ErrValidation, path)
	}
	return file.Users, nil
}
