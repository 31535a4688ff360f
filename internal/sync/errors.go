package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentity means no account is signed in. Cycles exit early
	// without recording an error.
	ErrNoIdentity = errors.New("no authenticated identity")

	// ErrOffline means the device has no connectivity. Cycles exit before
	// any network call.
	ErrOffline = errors.New("offline")
)

// Kind categorizes sync errors.
type Kind int

const (
	// KindNone is a nil error.
	KindNone Kind = iota
	// KindNoIdentity wraps ErrNoIdentity.
	KindNoIdentity
	// KindOffline wraps ErrOffline.
	KindOffline
	// KindTransport is a failed or rejected RPC. Only this kind and
	// KindLocal trigger retry with backoff.
	KindTransport
	// KindLocal is any other failure, typically the local store.
	KindLocal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoIdentity:
		return "no-identity"
	case KindOffline:
		return "offline"
	case KindTransport:
		return "transport"
	default:
		return "local"
	}
}

// TransportError is a failed push or pull call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the category of err.
func ErrorKind(err error) Kind {
	var transport *TransportError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoIdentity):
		return KindNoIdentity
	case errors.Is(err, ErrOffline):
		return KindOffline
	case errors.As(err, &transport):
		return KindTransport
	default:
		return KindLocal
	}
}

// Retryable reports whether err should enter the retry/backoff path.
func Retryable(err error) bool {
	k := ErrorKind(err)
	return k == KindTransport || k == KindLocal
}
