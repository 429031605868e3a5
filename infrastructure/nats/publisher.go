package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubject = "bridge.events"

// Publisher mirrors relay events to a NATS subject hierarchy:
// "{prefix}.{event type}".
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

func Connect(url, prefix string, log *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bot-bridge"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubject
	}
	return &Publisher{nc: nc, prefix: prefix, log: log}, nil
}

func (p *Publisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}

// Publish sends data without waiting for an acknowledgement.
func (p *Publisher) Publish(ctx context.Context, eventType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := p.Subject(eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
	}
}
