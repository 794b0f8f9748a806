package chat

import (
	"errors"
	"fmt"
)

// Error classes. Every chat error wraps exactly one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("state error")
)

// Validation errors.
var (
	ErrEmptyBody        = fmt.Errorf("%w: message body is empty", ErrValidation)
	ErrEmptyReaction    = fmt.Errorf("%w: reaction is empty", ErrValidation)
	ErrEmptyRoomID      = fmt.Errorf("%w: room id is empty", ErrValidation)
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", ErrValidation)
	ErrUnknownEvent     = fmt.Errorf("%w: unknown event", ErrValidation)
)

// Not-found errors.
var (
	ErrUnknownRoom       = fmt.Errorf("%w: room", ErrNotFound)
	ErrMessageNotFound   = fmt.Errorf("%w: message", ErrNotFound)
	ErrUnknownConnection = fmt.Errorf("%w: connection", ErrNotFound)
)

// State errors.
var (
	ErrRoomExists    = fmt.Errorf("%w: room already exists", ErrState)
	ErrNotIdentified = fmt.Errorf("%w: connection has not sent user_join", ErrState)
	ErrNotMember     = fmt.Errorf("%w: user is not a member of the room", ErrState)
	ErrDisconnected  = fmt.Errorf("%w: connection is closed", ErrState)
)

// errorClass names the class of err for log attributes.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "state"
	default:
		return "internal"
	}
}
