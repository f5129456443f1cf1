package remoteconfig

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch
type Kind int

const (
	// KindNetwork covers transport errors, timeouts and an open circuit breaker
	KindNetwork Kind = iota
	// KindStatus is a non-2xx response
	KindStatus
	// KindMalformed is a body that could not be decoded or lacks a URL
	KindMalformed
	// KindDeclined is a well-formed response with ok=false
	KindDeclined
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// FetchError is returned by every failed resolver call
type FetchError struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a FetchError of kind k
func IsKind(err error, k Kind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == k
}

// expected reports whether err is a server-side answer rather than an outage.
// Such answers do not count against the circuit breaker.
func expected(err error) bool {
	return err == nil || IsKind(err, KindDeclined) || IsKind(err, KindMalformed)
}
