// Package syncerr classifies failures seen while synchronizing the local store
// with the remote API.
package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"

	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
)

// Kind identifies the class of a sync failure.
type Kind int

const (
	// KindConnectivity means the remote side could not be reached or did not
	// answer in time. Only failures detected as being offline skip the retry
	// budget; timeouts and unavailable upstreams count like any failed call.
	KindConnectivity Kind = iota + 1
	// KindRemoteRejection means the remote side answered with a 4xx rejection.
	// It counts against the retry budget.
	KindRemoteRejection
	// KindAuth means the bearer token was refused (401/403). Sync stops until the
	// client re-authenticates.
	KindAuth
	// KindStorage means the local store failed. It is fatal to the current pass.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindRemoteRejection:
		return "remote_rejection"
	case KindAuth:
		return "auth"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified sync failure.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "create items".
	Op string
	// Status is the HTTP status for remote failures, 0 otherwise.
	Status int
	// Offline marks connectivity failures where no request reached the remote side.
	Offline bool
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Connectivity wraps err as an offline failure: the remote side was not reached.
func Connectivity(op string, err error) error {
	return &Error{Kind: KindConnectivity, Op: op, Offline: true, Err: err}
}

// Unavailable wraps err as a connectivity failure where the remote side was
// reached but did not answer usefully (timeout, 5xx, 429). status is 0 for timeouts.
func Unavailable(op string, status int, err error) error {
	return &Error{Kind: KindConnectivity, Op: op, Status: status, Err: err}
}

// RemoteRejection wraps err as a remote rejection with the given HTTP status.
func RemoteRejection(op string, status int, err error) error {
	return &Error{Kind: KindRemoteRejection, Op: op, Status: status, Err: err}
}

// Transport classifies an error returned by an HTTP round trip: timeouts are
// Unavailable, everything else (refused, DNS, no route) is Offline. A cancelled
// ctx is returned unchanged.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Unavailable(op, 0, err)
	}
	return Connectivity(op, err)
}

// Auth wraps err as an authentication failure.
func Auth(op string, status int, err error) error {
	return &Error{Kind: KindAuth, Op: op, Status: status, Err: err}
}

// Storage wraps err as a local storage failure. A nil err yields nil so call
// sites can wrap unconditionally.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) && se.Kind == KindStorage {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// IsConnectivity reports whether err is a connectivity failure.
func IsConnectivity(err error) bool { return KindOf(err) == KindConnectivity }

// IsOffline reports whether err is a connectivity failure detected as being offline.
func IsOffline(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindConnectivity && se.Offline
}

// IsRemoteRejection reports whether err is a remote rejection.
func IsRemoteRejection(err error) bool { return KindOf(err) == KindRemoteRejection }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsStorage reports whether err is a local storage failure.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }

// IsFatal reports whether err must abort the current sync pass.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindStorage, KindAuth:
		return true
	}
	return false
}

// CountsAgainstRetries reports whether err consumes a pending action's retry budget.
// Unclassified errors count, so an unknown failure cannot loop forever.
func CountsAgainstRetries(err error) bool {
	switch KindOf(err) {
	case KindConnectivity:
		return !IsOffline(err)
	case KindAuth, KindStorage:
		return false
	}
	return true
}

// Category maps err onto the application error categories used by HTTP surfaces.
func Category(err error) apperrors.Category {
	switch KindOf(err) {
	case KindConnectivity:
		return apperrors.CategoryConnectionTimeout
	case KindRemoteRejection:
		return apperrors.CategoryDependencyFailure
	case KindAuth:
		return apperrors.CategoryUnauthorized
	default:
		return apperrors.CategoryGeneralError
	}
}

// ToServiceError converts err into an apperrors.ServiceError carrying the mapped category.
func ToServiceError(err error) error {
	if err == nil {
		return nil
	}
	return &apperrors.ServiceError{
		Category: Category(err),
		Message:  err.Error(),
		Err:      err,
	}
}
