package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// APIError is the body of every error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Type    string `json:"type"`
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError maps a status to its message. field names the subject of
// the request, e.g. "error" for an alert lookup.
func NewAPIError(code int, field, reason, typ string) *APIError {
	var message string
	switch code {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		message = "invalid " + field
	case fiber.StatusNotFound:
		message = field + " not found"
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		message = "permissions required"
	case fiber.StatusConflict:
		message = "duplicated " + field
	case fiber.StatusNotImplemented:
		message = "not yet implemented"
	default:
		message = "internal server error"
		code = fiber.StatusInternalServerError
	}
	if reason == "" {
		reason = message
	}
	if typ == "" {
		typ = "api"
	}
	return &APIError{Code: code, Message: message, Reason: reason, Type: typ}
}

// fromError renders store errors with the status the store reported.
func fromError(err error, field string) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var e *domain.Error
	if errors.As(err, &e) && e.Kind == domain.KindDatabase {
		switch e.StatusCode {
		case fiber.StatusNotFound, fiber.StatusConflict:
		case fiber.StatusUnprocessableEntity:
			field = "query"
		default:
			field = ""
		}
		return NewAPIError(e.StatusCode, field, e.Reason, "database")
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return NewAPIError(fe.Code, field, fe.Message, "")
	}
	return NewAPIError(fiber.StatusInternalServerError, field, err.Error(), "")
}

func sendError(c *fiber.Ctx, err error, field string) error {
	apiErr := fromError(err, field)
	log.Error().Err(err).Int("code", apiErr.Code).Str("path", c.Path()).Msg("request failed")
	return c.Status(apiErr.Code).JSON(apiErr)
}

// ErrorHandler renders errors that escape a handler, such as unknown
// routes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return sendError(c, err, "route")
}
