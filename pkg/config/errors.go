package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is the kind of every configuration failure.
var ErrInvalid = errors.New("invalid configuration")

// Error reports a configuration problem found before any network call.
type Error struct {
	Key string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := ErrInvalid.Error()
	if e.Key != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Key)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalid}
	}
	return []error{ErrInvalid, e.Err}
}

func missing(key string) error {
	return &Error{Key: key, Msg: "required value is not set"}
}
