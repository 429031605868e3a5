package server

import (
	"bot-bridge/auth"
	"bot-bridge/codec"
	"bot-bridge/domain"
	"bot-bridge/errors"
	"bot-bridge/sink"
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	rejectMalformed   = "malformed"
	rejectRateLimited = "rate_limited"
)

// handleWebSocket owns one real-time connection: the reader turns frames into
// hub commands, the writer drains the connection sink.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connSink := sink.NewConnectionSink(s.config.ConnectionBufferSize)
	conn, err := s.service.Connect(ctx, connSink)
	if err != nil {
		s.log.Warn("Unable to register connection", "error", err)
		_ = c.Close()
		return
	}
	log := s.log.With("connection_id", conn)
	log.Debug("Connection opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(ctx, c, connSink, log)
	}()

	s.readPump(ctx, c, conn, log)
	cancel()
	<-done

	disconnectCtx, stop := context.WithTimeout(context.Background(), s.config.WriteWait)
	defer stop()
	if err := s.service.Disconnect(disconnectCtx, conn); err != nil {
		log.Warn("Unable to unregister connection", "error", err)
	}
	_ = c.Close()
	log.Debug("Connection closed")
}

func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn domain.ConnectionID, log *slog.Logger) {
	pongWait := s.config.PingPeriod + s.config.WriteWait
	limiter := auth.NewFrameLimiter(s.config.RateLimit, s.config.RateBurst)

	c.SetReadLimit(s.config.MaxFrameSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Read failed", "error", err)
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			s.reject(rejectRateLimited)
			log.Warn("Closing connection", "error", errors.ErrRateLimited)
			_ = c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, errors.ErrRateLimited.Error()),
				time.Now().Add(s.config.WriteWait))
			return
		}

		cmd, err := codec.DecodeCommand(conn, data)
		if err != nil {
			s.reject(rejectMalformed)
			log.Debug("Frame dropped", "error", err)
			continue
		}
		if err := s.service.Dispatch(ctx, cmd); err != nil {
			s.reject(errors.Code(err))
			log.Debug("Command rejected", "command", cmd.Name(), "error", err)
			if errors.Is(err, errors.ErrHubStopped) {
				return
			}
		}
	}
}

func (s *Server) writePump(ctx context.Context, c *websocket.Conn, connSink *sink.ConnectionSink, log *slog.Logger) {
	ticker := time.NewTicker(s.config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.config.WriteWait))
			return
		case e := <-connSink.Events():
			data, err := s.encoder.Encode(e)
			if err != nil {
				log.Warn("Unable to encode event", "event", e.Name(), "error", err)
				continue
			}
			_ = c.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("Write failed", "error", err)
				// unblocks the reader
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("Ping failed", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

func (s *Server) reject(reason string) {
	if s.metrics != nil {
		s.metrics.RejectFrame(reason)
	}
}
