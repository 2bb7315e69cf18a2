package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a failure so controllers can map it to an HTTP status
// without inspecting message strings.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindLimitExceeded
	KindConflict
	KindUpstream
	KindIncomplete
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func LimitExceeded(message string) *Error { return New(KindLimitExceeded, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}
func Incomplete(message string) *Error { return New(KindIncomplete, message) }

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusCode maps an error to the HTTP status a controller should answer with.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.StatusInternalServerError
	}

	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden, KindLimitExceeded:
		return fiber.StatusForbidden
	case KindConflict:
		return fiber.StatusConflict
	case KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes the standard error envelope for err.
func Respond(c *fiber.Ctx, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return c.Status(StatusCode(err)).JSON(fiber.Map{"error": e.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
