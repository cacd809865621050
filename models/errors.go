// models/errors.go
package models

import (
	"errors"
	"fmt"
)

// UserError carries a message safe to show to the acting client.
// Everything else is reported as a generic "try again".
type UserError struct {
	Msg string
}

func (e *UserError) Error() string {
	return e.Msg
}

// Userf builds a client-visible error.
func Userf(format string, args ...interface{}) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// UserMessage extracts the client-visible message, if the error has one.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg, true
	}
	return "", false
}
