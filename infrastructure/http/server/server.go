package server

import (
	"bot-bridge/auth"
	"bot-bridge/codec"
	"bot-bridge/errors"
	"bot-bridge/observability"
	"bot-bridge/services"
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultPingPeriod           = 30 * time.Second
	DefaultWriteWait            = 10 * time.Second
	DefaultConnectionBufferSize = 256
	DefaultMaxFrameSize         = 64 * 1024
)

type Config struct {
	HistoryLimit int
	// Retention caps the limit accepted by GET /messages.
	Retention            int
	StaticDir            string
	ConnectionBufferSize int
	PingPeriod           time.Duration
	WriteWait            time.Duration
	MaxFrameSize         int64
	RateLimit            float64
	RateBurst            int
	AccessLog            bool
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Server struct {
	app       *fiber.App
	service   services.IChatService
	encoder   *codec.Encoder
	auth      *auth.Authenticator
	metrics   *observability.Metrics
	process   *observability.ProcessMonitor
	log       *slog.Logger
	config    Config
	startedAt time.Time
}

// New builds the fiber application. metrics and process may be nil.
func New(log *slog.Logger, service services.IChatService, encoder *codec.Encoder,
	authenticator *auth.Authenticator, metrics *observability.Metrics,
	process *observability.ProcessMonitor, config Config) *Server {
	if config.PingPeriod <= 0 {
		config.PingPeriod = DefaultPingPeriod
	}
	if config.WriteWait <= 0 {
		config.WriteWait = DefaultWriteWait
	}
	if config.ConnectionBufferSize <= 0 {
		config.ConnectionBufferSize = DefaultConnectionBufferSize
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if authenticator == nil {
		authenticator = auth.NewAuthenticator("", "")
	}
	s := &Server{
		service:   service,
		encoder:   encoder,
		auth:      authenticator,
		metrics:   metrics,
		process:   process,
		log:       log,
		config:    config,
		startedAt: time.Now(),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "bot-bridge",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	if s.config.AccessLog {
		s.app.Use(logger.New())
	}

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))

	s.app.Post("/message", s.postMessage)
	s.app.Get("/messages", s.recentMessages)
	s.app.Get("/messages/search", s.searchMessages)
	s.app.Get("/messages/since/:id", s.messagesSince)
	s.app.Post("/messages/:id/reactions", s.react(false))
	s.app.Delete("/messages/:id/reactions", s.react(true))
	s.app.Get("/online", s.online)
	s.app.Get("/users", s.users)
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/send-message", s.legacyPost)
	api.Get("/send", s.legacySend)
	api.Get("/messages", s.allMessages)
	api.Get("/online", s.legacyOnline)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
	if s.config.StaticDir != "" {
		s.app.Static("/", s.config.StaticDir)
	}
}

func (s *Server) App() *fiber.App { return s.app }

// Listen blocks until the server stops.
func (s *Server) Listen(addr string) error {
	s.log.Info("HTTP server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message, Code: "http_error"})
	}
	status := errors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.Path(), "error", err)
	} else {
		s.log.Debug("Request rejected", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: errors.Code(err)})
}
