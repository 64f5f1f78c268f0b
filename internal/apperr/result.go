package apperr

import "github.com/pkg/errors"

// Result is the uniform envelope returned by every public operation that
// crosses a service boundary. Callers branch on Success.
type Result[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *T       `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func OK[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Data: &data}
}

// Fail builds a failure envelope. The message is the user-facing text of the
// innermost package sentinel when there is one.
func Fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Message: UserMessage(err), Errors: []string{KindOf(err).String()}}
}

// UserMessage picks a message safe to show to an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTransient:
			return "temporary storage error, try again"
		case KindArchivalFailed:
			return "archival failed"
		}
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return errors.Cause(e.Err).Error()
		}
	}
	return "internal error"
}
