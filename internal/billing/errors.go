package billing

import (
	"errors"
	"strings"

	"github.com/roach88/billbook/internal/industry"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrPlanLimit = errors.New("plan limit reached")
	ErrDisabled  = errors.New("feature not configured")
)

// InputError rejects a request because of its content.
type InputError struct {
	Message string
	Fields  []industry.FieldError
}

func (e *InputError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func invalid(msg string) error {
	return &InputError{Message: msg}
}

// IsInput reports whether err is caused by bad input.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
