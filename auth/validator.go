package auth

import (
	"bot-bridge/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MessageRequest is the body of POST /message. Empty content is left to
// the message log so that it reports empty_content.
type MessageRequest struct {
	Sender  string `json:"sender" validate:"required,max=64"`
	Content string `json:"content" validate:"max=65536"`
}

// LegacyMessageRequest is the body of POST /api/send-message and the query of GET /api/send.
type LegacyMessageRequest struct {
	From string `json:"from" query:"from" validate:"required,max=64"`
	Text string `json:"text" query:"text" validate:"required,max=65536"`
}

type ReactionRequest struct {
	Sender string `json:"sender" validate:"required,max=64"`
	Emoji  string `json:"emoji" validate:"required"`
}

// ValidateRequest reports the first failing rule as a malformed payload.
func ValidateRequest(request any) error {
	if err := validate.Struct(request); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return nil
}
