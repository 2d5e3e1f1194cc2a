package broadcast_errors

import "errors"

// Domain errors
var (
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidState         = errors.New("message is live and can no longer be edited")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrContentTooLong       = errors.New("content too long")
	ErrMissingPriorDelivery = errors.New("missing provider delivery for an earlier event")
	ErrDuplicateCallback    = errors.New("provider message already in a terminal state")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAlreadyExists        = errors.New("already exists")
	ErrReasonRequired       = errors.New("a reason is required")
)

// Kind returns the stable machine-readable code for a domain error.
// Unrecognized errors map to INTERNAL_ERROR.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, ErrContentTooLong):
		return "CONTENT_TOO_LONG"
	case errors.Is(err, ErrMissingPriorDelivery):
		return "MISSING_PRIOR_DELIVERY"
	case errors.Is(err, ErrDuplicateCallback):
		return "DUPLICATE_CALLBACK"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrReasonRequired):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrAlreadyExists):
		return "ALREADY_EXISTS"
	default:
		return "INTERNAL_ERROR"
	}
}

// ContentTooLongError carries the exact post-encoding limit that was exceeded.
type ContentTooLongError struct {
	Limit int
}

func (e *ContentTooLongError) Error() string {
	return ErrContentTooLong.Error()
}

func (e *ContentTooLongError) Unwrap() error {
	return ErrContentTooLong
}
