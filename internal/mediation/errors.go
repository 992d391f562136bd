package mediation

import (
	"errors"
	"fmt"
)

// ErrAdapterNotFound is returned by Registry.Create for unknown type tokens.
var ErrAdapterNotFound = errors.New("adapter not registered")

// ErrorKind distinguishes the recoverable failures of a load attempt.
type ErrorKind int

const (
	KindNoAdapter ErrorKind = iota + 1
	KindAdapterInit
	KindAdapterFailed
	KindExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoAdapter:
		return "no_adapter"
	case KindAdapterInit:
		return "adapter_init"
	case KindAdapterFailed:
		return "adapter_failed"
	case KindExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error describes the most recent failure of a slot.
type Error struct {
	Kind        ErrorKind
	AdapterType string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.AdapterType != "" {
		msg += " [" + e.AdapterType + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}
