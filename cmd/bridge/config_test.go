package main

import (
	"testing"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) Config {
	t.Helper()
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	require.NoError(t, err)
	return config
}

func TestConfig_DefaultsAreValid(t *testing.T) {
	req := require.New(t)
	config := defaults(t)

	req.NoError(config.Validate())
	req.Equal(100, config.MessageRetention)
	req.Equal(50, config.HistoryLimit)
	req.Equal("badger", config.StorageBackend)
	r, err := config.CharacterRune()
	req.NoError(err)
	req.Equal('*', r)
}

func TestConfig_RejectsImpossibleValues(t *testing.T) {
	req := require.New(t)

	config := defaults(t)
	config.MessageRetention = 0
	req.ErrorContains(config.Validate(), "MESSAGE_RETENTION")

	config = defaults(t)
	config.StorageBackend = "postgres"
	req.ErrorContains(config.Validate(), "STORAGE_BACKEND")

	config = defaults(t)
	config.CharReplacement = "##"
	req.ErrorContains(config.Validate(), "CHARACTER_REPLACEMENT")

	config = defaults(t)
	config.GRPCHealthPort = config.Port
	req.ErrorContains(config.Validate(), "GRPC_HEALTH_PORT")
}

func TestConfig_ReadsEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("MESSAGE_RETENTION", "1000")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("TYPING_TIMEOUT", "5s")

	config := defaults(t)

	req.NoError(config.Validate())
	req.Equal(1000, config.MessageRetention)
	req.Equal("memory", config.StorageBackend)
	req.Equal("5s", config.TypingTimeout.String())
}
