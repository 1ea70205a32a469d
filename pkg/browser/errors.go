package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable      = errors.New("browser driver unavailable")
	ErrSessionClosed    = errors.New("browser session closed")
	ErrStaleHandle      = errors.New("stale element handle")
	ErrNoDialog         = errors.New("no dialog present")
	ErrNoSuchTab        = errors.New("no such tab")
	ErrCaptureInactive  = errors.New("network capture not started")
	ErrOperationTimeout = errors.New("operation timeout")
	ErrDriverCrashed    = errors.New("browser driver crashed")
)

// InterceptedError reports a click that another element swallowed. The
// obscuring element's identity is preserved so the failure report can
// show what was actually in the way.
type InterceptedError struct {
	Handle    string
	Obscuring map[string]any
}

func (e *InterceptedError) Error() string {
	if tag, ok := e.Obscuring["tag"].(string); ok && tag != "" {
		return fmt.Sprintf("element click intercepted by <%s>", tag)
	}
	return "element click intercepted"
}

// AsIntercepted extracts an InterceptedError from err's chain.
func AsIntercepted(err error) (*InterceptedError, bool) {
	var ie *InterceptedError
	ok := errors.As(err, &ie)
	return ie, ok
}

// DriverError wraps low-level driver failures with a stable code.
type DriverError struct {
	Code    string
	Message string
	Err     error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("driver error [%s]: %s", e.Code, e.Message)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// IsCrash reports whether err indicates the driver process died.
func IsCrash(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDriverCrashed) || errors.Is(err, ErrSessionClosed) {
		return true
	}
	var de *DriverError
	if errors.As(err, &de) {
		return de.Code == "crashed" || de.Code == "session_deleted"
	}
	return false
}

// IsTimeout reports whether err indicates the driver stopped responding.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrOperationTimeout)
}
