package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput means the caller omitted a required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means the referenced conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrValidation means a write would break a data-model invariant.
	ErrValidation = errors.New("conversation validation failed")
	// ErrConflict means the stored conversation changed since it was read.
	ErrConflict = errors.New("conversation was modified concurrently")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InputError is a client mistake; its message is safe to return as is.
// It matches ErrInvalidInput.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(reason string) error {
	return &InputError{Reason: reason}
}

var (
	ErrMessageRequired = invalidInput("Message or imageUrl is required")
	ErrUserRequired    = invalidInput("userId is required")
	ErrTitleRequired   = invalidInput("Title is required")
)
