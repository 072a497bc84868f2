// Package code defines the application's error taxonomy. Codes are
// registered once at init time; duplicate registrations panic so collisions
// are caught immediately.
package code

import (
	"fmt"
)

// Code is a classified application error. Instances created by NewError are
// singletons; WithDetails returns a copy so the registered value is never
// mutated.
type Code struct {
	code    int
	msg     string
	details []string
}

var codes = map[int]string{}

// NewError registers a new error code.
func NewError(code int, msg string) *Code {
	if _, ok := codes[code]; ok {
		panic(fmt.Sprintf("error code %d already registered", code))
	}
	codes[code] = msg
	return &Code{code: code, msg: msg}
}

func (e *Code) Error() string {
	if len(e.details) > 0 {
		return fmt.Sprintf("%s: %s", e.msg, e.details[0])
	}
	return e.msg
}

func (e *Code) Code() int {
	return e.code
}

func (e *Code) Msg() string {
	return e.msg
}

func (e *Code) Details() []string {
	return e.details
}

// WithDetails returns a copy of the code carrying extra detail strings.
func (e *Code) WithDetails(details ...string) *Code {
	c := &Code{code: e.code, msg: e.msg}
	c.details = append(c.details, e.details...)
	c.details = append(c.details, details...)
	return c
}

// Is matches by numeric code so wrapped and detailed copies still compare
// equal under errors.Is.
func (e *Code) Is(target error) bool {
	t, ok := target.(*Code)
	return ok && t.code == e.code
}
