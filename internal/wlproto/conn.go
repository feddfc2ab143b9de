package wlproto

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when a request needs a newer interface version
// than the one the manager global was bound with.
var ErrUnsupported = errors.New("request not supported by bound version")

// Conn is the transport as seen by the engine: it allocates client-side ids
// and queues requests. Send never blocks; delivery failures surface from
// Flush or from the transport's own dispatch loop.
type Conn interface {
	// NewID allocates an id for a request's new_id argument.
	NewID() ObjectID
	// Send queues req for object obj.
	Send(obj ObjectID, req Request)
	// Flush writes queued requests to the compositor.
	Flush() error
}

// CheckVersion returns an ErrUnsupported error when req needs a version newer
// than version.
func CheckVersion(req Request, version uint32) error {
	if req.Since() > version {
		return fmt.Errorf("%s.%s needs version %d, bound %d: %w",
			req.Interface(), req.Name(), req.Since(), version, ErrUnsupported)
	}
	return nil
}
