package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a domain failure; the handler boundary maps it to an
// HTTP status code.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	Expired
	Forbidden
	Invalid
	Unauthorized
)

// Error is a domain error with a client-facing detail message.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// New builds a domain error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// StatusCode maps an error kind to its HTTP status. Expired tokens are
// reported as 400 with a detail message, matching the client contract.
func StatusCode(err error) int {
	switch KindOf(err) {
	case NotFound:
		return fiber.StatusNotFound
	case Conflict:
		return fiber.StatusConflict
	case Expired, Invalid:
		return fiber.StatusBadRequest
	case Forbidden:
		return fiber.StatusForbidden
	case Unauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
