package server

import (
	"bot-bridge/auth"
	"bot-bridge/codec"
	"bot-bridge/domain"
	"bot-bridge/errors"
	"bot-bridge/observability"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

const defaultSearchLimit = 20

type LegacyResponse struct {
	Success bool             `json:"success"`
	Message codec.MessageView `json:"message"`
}

type HealthResponse struct {
	Status      string                     `json:"status"`
	Uptime      float64                    `json:"uptime"`
	Connections int                        `json:"connections"`
	Messages    int                        `json:"messages"`
	Process     observability.ProcessStats `json:"process"`
}

func (s *Server) authorize(c *fiber.Ctx, sender string) error {
	return s.auth.Authorize(c.Get("X-API-Key"), c.Get(fiber.HeaderAuthorization), sender)
}

func parseBody(c *fiber.Ctx, request any) error {
	if err := c.BodyParser(request); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return auth.ValidateRequest(request)
}

func (s *Server) post(c *fiber.Ctx, sender, text string) (domain.Message, error) {
	if err := s.authorize(c, sender); err != nil {
		return domain.Message{}, err
	}
	return s.service.PostMessage(c.UserContext(), domain.PostMessageCommand{UserKey: sender, Text: text})
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	var request auth.MessageRequest
	if err := parseBody(c, &request); err != nil {
		return err
	}
	message, err := s.post(c, request.Sender, request.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(s.encoder.MessageView(message))
}

func (s *Server) legacyPost(c *fiber.Ctx) error {
	var request auth.LegacyMessageRequest
	if err := parseBody(c, &request); err != nil {
		return err
	}
	message, err := s.post(c, request.From, request.Text)
	if err != nil {
		return err
	}
	return c.JSON(LegacyResponse{Success: true, Message: s.encoder.MessageView(message)})
}

func (s *Server) legacySend(c *fiber.Ctx) error {
	var request auth.LegacyMessageRequest
	if err := c.QueryParser(&request); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if err := auth.ValidateRequest(&request); err != nil {
		return err
	}
	message, err := s.post(c, request.From, request.Text)
	if err != nil {
		return err
	}
	return c.JSON(LegacyResponse{Success: true, Message: s.encoder.MessageView(message)})
}

func (s *Server) recentMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", s.config.HistoryLimit)
	if limit < 0 {
		return fmt.Errorf("%w: negative limit", errors.ErrMalformedPayload)
	}
	if s.config.Retention > 0 {
		limit = min(limit, s.config.Retention)
	}
	messages, err := s.service.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(s.encoder.MessageViews(messages))
}

func (s *Server) allMessages(c *fiber.Ctx) error {
	messages, err := s.service.All(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(s.encoder.MessageViews(messages))
}

func (s *Server) messagesSince(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fmt.Errorf("%w: message id %q", errors.ErrMalformedPayload, c.Params("id"))
	}
	messages, err := s.service.Since(c.UserContext(), domain.MessageID(id))
	if err != nil {
		return err
	}
	return c.JSON(s.encoder.MessageViews(messages))
}

func (s *Server) searchMessages(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return fmt.Errorf("%w: missing query", errors.ErrMalformedPayload)
	}
	limit := c.QueryInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	messages, err := s.service.Search(c.UserContext(), query, limit)
	if err != nil {
		return err
	}
	return c.JSON(s.encoder.MessageViews(messages))
}

func (s *Server) react(remove bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: message id %q", errors.ErrMalformedPayload, c.Params("id"))
		}
		var request auth.ReactionRequest
		if err := parseBody(c, &request); err != nil {
			return err
		}
		if err := s.authorize(c, request.Sender); err != nil {
			return err
		}
		change, err := s.service.React(c.UserContext(), domain.ReactionCommand{
			MessageID: domain.MessageID(id),
			Emoji:     request.Emoji,
			UserKey:   request.Sender,
			Remove:    remove,
		})
		if err != nil {
			return err
		}
		return c.JSON(codec.ReactionView{
			MessageID: int64(change.MessageID),
			Emoji:     change.Emoji,
			UserKeys:  lo.Ternary(change.UserKeys == nil, []string{}, change.UserKeys),
		})
	}
}

func (s *Server) online(c *fiber.Ctx) error {
	users, err := s.service.Online(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(lo.Ternary(users == nil, []domain.UserIdentity{}, users))
}

// legacyOnline keeps the {"online": [keys]} shape.
func (s *Server) legacyOnline(c *fiber.Ctx) error {
	users, err := s.service.Online(c.UserContext())
	if err != nil {
		return err
	}
	keys := lo.Map(users, func(u domain.UserIdentity, _ int) string { return u.Key })
	return c.JSON(fiber.Map{"online": keys})
}

func (s *Server) users(c *fiber.Ctx) error {
	return c.JSON(s.service.Identities())
}

func (s *Server) health(c *fiber.Ctx) error {
	stats := s.service.Stats()
	response := HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(s.startedAt).Seconds(),
		Connections: stats.Connections,
		Messages:    stats.Messages,
	}
	if s.process != nil {
		response.Process = s.process.Latest()
	}
	return c.JSON(response)
}
