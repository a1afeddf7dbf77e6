package logquery

import (
	"errors"
	"fmt"
)

// Kind classifies a query failure for transport layers.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
	KindStorage    Kind = "storage"
)

// Error is the only error type returned by Engine and Compile.
type Error struct {
	Kind   Kind
	Param  string // offending parameter, validation errors only
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Param != "" {
		msg += " " + e.Param
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func invalidParam(param, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Param: param, Detail: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Detail: op, Err: err}
}
