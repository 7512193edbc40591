package errors

import (
	"errors"
	"fmt"
)

// Error codes shared by every package of the store. Callers switch on the
// code rather than on concrete error values.
const (
	EInternal    = "internal error"
	ENotFound    = "not found"
	EConflict    = "conflict" // action cannot be performed
	EInvalid     = "invalid"  // validation failed
	EEmptyValue  = "empty value"
	EUnavailable = "unavailable"
)

const internalMessage = "An internal error has occurred."

// Error is the coded error returned across package boundaries.
//
// Code is meant for programs deciding how to recover, Msg for the person
// reading it. Op names the operation that failed ("scoring/CreatePlayer")
// and Err is the cause, reachable through errors.Is and errors.As.
//
//	&Error{
//	    Code: EUnavailable,
//	    Msg:  "data store unavailable",
//	    Op:   "storage/Open",
//	    Err:  err,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Unavailable returns an EUnavailable error for op caused by err.
func Unavailable(op, msg string, err error) *Error {
	return &Error{Code: EUnavailable, Msg: msg, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// lookup walks the chain of *Error values in err, outermost first, and
// returns the first non-empty value reported by field.
func lookup(err error, field func(*Error) string) (string, bool) {
	var e *Error
	found := false
	for errors.As(err, &e) && e != nil {
		found = true
		if v := field(e); v != "" {
			return v, true
		}
		err = e.Err
	}
	return "", found
}

// ErrorCode returns the code of the outermost *Error in err's chain that has
// one. Errors carrying no code are EInternal; nil has no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code, _ := lookup(err, func(e *Error) string { return e.Code }); code != "" {
		return code
	}
	return EInternal
}

// ErrorOp returns the operation recorded on err, or "".
func ErrorOp(err error) string {
	op, _ := lookup(err, func(e *Error) string { return e.Op })
	return op
}

// ErrorMessage returns the human readable message of err, or a generic one
// when err carries none.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, _ := lookup(err, func(e *Error) string { return e.Msg }); msg != "" {
		return msg
	}
	return internalMessage
}
