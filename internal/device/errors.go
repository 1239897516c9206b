package device

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEndpoint is returned before any network I/O when no base URL is configured.
	ErrEmptyEndpoint = errors.New("device endpoint is empty")
	// ErrModuleDisabled is returned for requests against a module disabled in config.
	ErrModuleDisabled = errors.New("module is disabled")
	ErrUnknownTarget  = errors.New("unknown command target")
	ErrInvalidMode    = errors.New("invalid mode")
	ErrInvalidLock    = errors.New("invalid lock mode")
	ErrInvalidHistory = errors.New("invalid history request")
)

// StatusError is a non-2xx device response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}
