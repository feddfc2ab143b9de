// Package transfer owns the pipe endpoints used to move data for a receive
// or send request, and hands them to an evloop.Loop for non-blocking I/O.
package transfer

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"go.klb.dev/wlclip/internal/evloop"
)

var (
	// ErrResourceExhausted wraps EMFILE and ENFILE from pipe creation. The
	// transfer simply does not happen; the session is unaffected.
	ErrResourceExhausted = errors.New("transfer: out of file descriptors")
	// ErrClosed is returned by operations on a closed endpoint.
	ErrClosed = errors.New("transfer: endpoint closed")
	// ErrHandedOff is returned when an endpoint owned by a loop is used
	// outside of its readiness callback.
	ErrHandedOff = errors.New("transfer: endpoint owned by event loop")
)

// endpoint is one owned end of a pipe.
type endpoint struct {
	fd          int
	closed      bool
	handed      bool
	dispatching bool
}

// Fd returns the descriptor, or -1 once closed.
func (e *endpoint) Fd() int {
	if e.closed {
		return -1
	}
	return e.fd
}

func (e *endpoint) usable() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.handed && !e.dispatching:
		return ErrHandedOff
	}
	return nil
}

// Close closes the descriptor. An endpoint handed to a loop is closed by the
// loop when its callback returns evloop.Remove.
func (e *endpoint) Close() error {
	if e.closed {
		return ErrClosed
	}
	if e.handed {
		return ErrHandedOff
	}
	return e.release()
}

func (e *endpoint) release() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return unix.Close(e.fd)
}

// loopSource is what the loop holds for a handed-off endpoint.
type loopSource struct{ e *endpoint }

func (s loopSource) Fd() int      { return s.e.fd }
func (s loopSource) Close() error { return s.e.release() }

func (e *endpoint) handoff(loop *evloop.Loop, interest evloop.Interest, cb func(evloop.Readiness) evloop.PostAction) (evloop.Token, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.handed {
		return 0, ErrHandedOff
	}
	if err := unix.SetNonblock(e.fd, true); err != nil {
		return 0, fmt.Errorf("transfer: set nonblocking: %w", err)
	}
	e.handed = true
	tok, err := loop.Insert(loopSource{e}, interest, func(r evloop.Readiness) evloop.PostAction {
		e.dispatching = true
		defer func() { e.dispatching = false }()
		return cb(r)
	})
	if err != nil {
		e.handed = false
		return 0, err
	}
	return tok, nil
}

// ReadPipe is the local read end of a receive transfer.
type ReadPipe struct {
	endpoint
}

// WritePipe is a write end, either ours from Pipe or the one the compositor
// passed with a send event.
type WritePipe struct {
	endpoint
}

// NewWritePipe takes ownership of fd.
func NewWritePipe(fd int) *WritePipe {
	return &WritePipe{endpoint{fd: fd}}
}

// Pipe creates a close-on-exec pipe.
func Pipe() (*ReadPipe, *WritePipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		if errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE) {
			return nil, nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
		return nil, nil, fmt.Errorf("transfer: pipe: %w", err)
	}
	return &ReadPipe{endpoint{fd: fds[0]}}, NewWritePipe(fds[1]), nil
}

// Read implements io.Reader. On a non-blocking pipe with nothing buffered it
// returns unix.EAGAIN.
func (p *ReadPipe) Read(b []byte) (int, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(p.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Handoff gives the pipe to loop. From then on it may only be read inside
// cb, and it is closed when cb returns evloop.Remove.
func (p *ReadPipe) Handoff(loop *evloop.Loop, cb func(*ReadPipe, evloop.Readiness) evloop.PostAction) (evloop.Token, error) {
	return p.handoff(loop, evloop.Readable, func(r evloop.Readiness) evloop.PostAction {
		return cb(p, r)
	})
}

// Write implements io.Writer. A short write on a non-blocking pipe returns
// the count written together with unix.EAGAIN.
func (p *WritePipe) Write(b []byte) (int, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	written := 0
	for written < len(b) {
		n, err := unix.Write(p.fd, b[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// Handoff gives the pipe to loop, like ReadPipe.Handoff.
func (p *WritePipe) Handoff(loop *evloop.Loop, cb func(*WritePipe, evloop.Readiness) evloop.PostAction) (evloop.Token, error) {
	return p.handoff(loop, evloop.Writable, func(r evloop.Readiness) evloop.PostAction {
		return cb(p, r)
	})
}
