package authsync

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrInvalidCredentials reports a login rejected by the backend. The
	// session state is unaffected; the caller may retry with new input.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired reports a refresh rejected by the backend. The store
	// treats it as an implicit logout.
	ErrSessionExpired = errors.New("session expired")
	// ErrBackendUnavailable reports a transient transport failure. The
	// operation may be retried manually; the core never retries on its own.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	// ErrNoSession is returned by operations that require an authenticated
	// session when none is present.
	ErrNoSession = errors.New("no session")
	// ErrStoreNotReady is returned when a store is used before Build wired
	// its dependencies.
	ErrStoreNotReady = errors.New("session store not initialized")
)

// statusCoder matches the shape most HTTP-backed auth clients attach to
// their failures.
type statusCoder interface {
	StatusCode() int
}

// NormalizeLoginError maps an arbitrary backend login failure into the
// closed error taxonomy. Internal logic never inspects raw backend error
// shapes past this boundary.
func NormalizeLoginError(err error) error {
	if err == nil {
		return nil
	}
	if normalized, ok := normalizeCommon(err); ok {
		return normalized
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 400 || code == 401 || code == 403:
			return errorWith(ErrInvalidCredentials, err)
		case code >= 500:
			return errorWith(ErrBackendUnavailable, err)
		}
	}
	// Unrecognized login failures read as credential rejections; the
	// backend answered, it just said no.
	return errorWith(ErrInvalidCredentials, err)
}

// NormalizeRefreshError maps an arbitrary backend refresh failure into the
// closed error taxonomy. Every failure shape demotes to [ErrSessionExpired]
// except recognizable transport errors.
func NormalizeRefreshError(err error) error {
	if err == nil {
		return nil
	}
	if normalized, ok := normalizeCommon(err); ok {
		return normalized
	}
	return errorWith(ErrSessionExpired, err)
}

func normalizeCommon(err error) (error, bool) {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrBackendUnavailable):
		return err, true
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errorWith(ErrBackendUnavailable, err), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errorWith(ErrBackendUnavailable, err), true
	}
	return nil, false
}

// normalizedError keeps the taxonomy sentinel as the Is target while
// preserving the backend's original failure for Unwrap chains and display.
type normalizedError struct {
	kind  error
	cause error
}

func errorWith(kind, cause error) error {
	if errors.Is(cause, kind) {
		return cause
	}
	return &normalizedError{kind: kind, cause: cause}
}

func (e *normalizedError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *normalizedError) Is(target error) bool {
	return errors.Is(e.kind, target)
}

func (e *normalizedError) Unwrap() error {
	return e.cause
}
