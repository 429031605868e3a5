package main

import (
	"bot-bridge/infrastructure/storage"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=3000"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	MessageRetention     int           `env:"MESSAGE_RETENTION,default=100"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,default=3s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=100ms"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=10"`
	StorageBackend       string        `env:"STORAGE_BACKEND,default=badger"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger"`
	SnapshotFilepath     string        `env:"SNAPSHOT_FILEPATH,default=./data/messages.json"`
	SearchEnabled        bool          `env:"SEARCH_ENABLED,default=true"`
	SearchIndexPath      string        `env:"SEARCH_INDEX_PATH"`
	IdentitiesFile       string        `env:"IDENTITIES_FILE"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	APIKeyHash           string        `env:"API_KEY_HASH"`
	JWTSecret            string        `env:"JWT_SECRET"`
	NatsURL              string        `env:"NATS_URL"`
	NatsSubject          string        `env:"NATS_SUBJECT,default=bridge.events"`
	WSRateLimit          float64       `env:"WS_RATE_LIMIT,default=20"`
	WSRateBurst          int           `env:"WS_RATE_BURST,default=40"`
	WSPingPeriod         time.Duration `env:"WS_PING_PERIOD,default=30s"`
	GRPCHealthPort       int           `env:"GRPC_HEALTH_PORT"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	StaticDir            string        `env:"STATIC_DIR,default=./public"`
}

// Validate rejects values the relay cannot run with.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.Port > 0 && c.Port < 65536, "PORT out of range: %d", c.Port)
	check(c.GRPCHealthPort >= 0 && c.GRPCHealthPort < 65536, "GRPC_HEALTH_PORT out of range: %d", c.GRPCHealthPort)
	check(c.GRPCHealthPort == 0 || c.GRPCHealthPort != c.Port, "GRPC_HEALTH_PORT must differ from PORT")
	check(c.MessageRetention > 0, "MESSAGE_RETENTION must be positive")
	check(c.HistoryLimit > 0, "HISTORY_LIMIT must be positive")
	check(c.TypingTimeout > 0, "TYPING_TIMEOUT must be positive")
	check(c.ConnectionBufferSize > 0, "CONNECTION_BUFFER_SIZE must be positive")
	check(c.BufferSize > 0, "BUFFER_SIZE must be positive")
	check(c.DeliveryTimeout > 0, "DELIVERY_TIMEOUT must be positive")
	check(c.SinkTimeout > 0, "SINK_TIMEOUT must be positive")
	check(c.RestartInterval > 0, "RESTART_INTERVAL must be positive")
	check(c.MetricInterval > 0, "METRIC_INTERVAL must be positive")
	check(c.LowCapacityThreshold >= 0, "LOW_CAPACITY_THRESHOLD must not be negative")
	check(c.MaxContentLength >= 0, "MAX_CONTENT_LENGTH must not be negative")
	check(c.WSRateLimit >= 0, "WS_RATE_LIMIT must not be negative")
	check(c.WSRateBurst >= 0, "WS_RATE_BURST must not be negative")
	check(c.WSPingPeriod > 0, "WS_PING_PERIOD must be positive")
	switch strings.ToLower(c.StorageBackend) {
	case storage.BackendBadger:
		check(c.BadgerFilepath != "", "BADGER_FILEPATH is required for the badger backend")
	case storage.BackendFile:
		check(c.SnapshotFilepath != "", "SNAPSHOT_FILEPATH is required for the file backend")
	case storage.BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if _, err := c.CharacterRune(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "DEBUG")
}
