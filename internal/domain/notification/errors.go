package notification

import "errors"

var (
	ErrNotFound          = errors.New("notification not found")
	ErrForbidden         = errors.New("notification belongs to another user")
	ErrPastSchedule      = errors.New("scheduled time is not in the future")
	ErrInvalidSnooze     = errors.New("notification is not due yet")
	ErrInvalidAction     = errors.New("unknown action")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrTerminalState     = errors.New("notification is closed")
	ErrInvalidType       = errors.New("invalid notification type")
	ErrInvalidRepeat     = errors.New("invalid repeat rule")
	ErrInvalidMessage    = errors.New("message must not be empty")
	ErrInvalidCursor     = errors.New("cursor does not reference a notification")
)
