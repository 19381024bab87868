package geometry

import (
	"errors"
	"fmt"
)

var (
	ErrNoValidPageBox        = errors.New("no valid page box")
	ErrDegenerateRegion      = errors.New("degenerate region")
	ErrPageOutOfRange        = errors.New("page out of range")
	ErrBoxConventionMismatch = errors.New("box convention mismatch")
	ErrTransformFailed       = errors.New("render transform construction failed")
)

// Error wraps geometry failures; errors.Is matches on Kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
