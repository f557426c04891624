package dispatch

import (
	"errors"
	"fmt"

	"github.com/kbukum/relay/httpclient"
)

// ErrForwardFailed marks a failed call to the selected endpoint: transport
// error, timeout or non-2xx answer.
var ErrForwardFailed = errors.New("dispatch: forward failed")

// ForwardError describes a failed forward.
type ForwardError struct {
	Service string
	Target  string
	// StatusCode is the upstream status, 0 when no response arrived.
	StatusCode int
	Err        error
}

func (e *ForwardError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("dispatch: forward to %s for %q failed with HTTP %d", e.Target, e.Service, e.StatusCode)
	}
	return fmt.Sprintf("dispatch: forward to %s for %q failed: %v", e.Target, e.Service, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// Is reports ErrForwardFailed as a match.
func (e *ForwardError) Is(target error) bool {
	return target == ErrForwardFailed
}

// Timeout reports whether the forward ran out of time.
func (e *ForwardError) Timeout() bool {
	return httpclient.IsTimeout(e.Err)
}

// IsTimeout reports whether err is a forward that timed out.
func IsTimeout(err error) bool {
	var fe *ForwardError
	return errors.As(err, &fe) && fe.Timeout()
}
