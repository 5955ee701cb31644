package database

import (
	stderrs "errors"
	"fmt"

	"github.com/Station-Manager/errors"
)

// Kind classifies database failures at the boundary where they are caught.
type Kind int

const (
	// KindConnectivity covers pool construction, the connectivity probe and
	// waiting for a pooled connection.
	KindConnectivity Kind = iota + 1
	// KindTransaction covers failures inside a unit of work.
	KindTransaction
	// KindConfiguration covers unusable connection options.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTransaction:
		return "transaction"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Acquire after Close.
var ErrClosed = stderrs.New("database manager is closed")

// Error carries the Kind of a failure together with the operation that hit it.
type Error struct {
	Kind Kind
	Op   errors.Op
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind lets the logger record the classification.
func (e *Error) ErrorKind() string { return e.Kind.String() }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if stderrs.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op errors.Op, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// wrap builds a detailed error for op and classifies it.
func wrap(kind Kind, op errors.Op, cause error, msg string) error {
	return newError(kind, op, errors.New(op).Err(cause).Msg(msg))
}
