// Package evloop is a small poll(2) driven readiness loop. Sources are file
// descriptors registered with a callback; Dispatch waits for readiness and
// runs callbacks on the calling goroutine.
package evloop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned by Insert after Close.
	ErrClosed = errors.New("evloop: loop closed")
	// ErrDeadline is wrapped by Run when the deadline passes with sources left.
	ErrDeadline = errors.New("evloop: deadline exceeded")
)

// Interest selects the readiness a source is polled for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Readiness is what poll reported for a source.
type Readiness struct {
	Readable bool
	Writable bool
	Hangup   bool
	Error    bool
}

// PostAction tells the loop what to do with a source after its callback.
type PostAction int

const (
	Continue PostAction = iota
	Remove
)

// Token identifies a registered source.
type Token uint64

// Callback runs when its source becomes ready.
type Callback func(Readiness) PostAction

// Source is anything with a pollable descriptor. A Source that also
// implements io.Closer is closed when it is removed from the loop.
type Source interface {
	Fd() int
}

type entry struct {
	src      Source
	interest Interest
	cb       Callback
}

// Loop is not safe for concurrent use.
type Loop struct {
	next    Token
	entries map[Token]*entry
	order   []Token
	closed  bool
}

func New() *Loop {
	return &Loop{entries: make(map[Token]*entry)}
}

// Insert registers src. The loop takes ownership of src until it is removed.
func (l *Loop) Insert(src Source, interest Interest, cb Callback) (Token, error) {
	if l.closed {
		return 0, ErrClosed
	}
	if fd := src.Fd(); fd < 0 {
		return 0, fmt.Errorf("evloop: invalid fd %d", fd)
	}
	if interest == 0 {
		return 0, errors.New("evloop: empty interest")
	}
	l.next++
	tok := l.next
	l.entries[tok] = &entry{src: src, interest: interest, cb: cb}
	l.order = append(l.order, tok)
	return tok, nil
}

// Remove deregisters tok and closes its source. Removing an unknown token is
// a no-op.
func (l *Loop) Remove(tok Token) error {
	e, ok := l.entries[tok]
	if !ok {
		return nil
	}
	delete(l.entries, tok)
	for i, t := range l.order {
		if t == tok {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	if c, ok := e.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Len returns the number of registered sources.
func (l *Loop) Len() int { return len(l.entries) }

// Dispatch waits up to timeout for readiness and runs the callbacks of ready
// sources. A negative timeout blocks until something is ready. It returns
// the number of callbacks run; an interrupted wait returns zero and no error.
func (l *Loop) Dispatch(timeout time.Duration) (int, error) {
	if len(l.order) == 0 {
		return 0, nil
	}
	toks := append([]Token(nil), l.order...)
	fds := make([]unix.PollFd, len(toks))
	for i, tok := range toks {
		e := l.entries[tok]
		var ev int16
		if e.interest&Readable != 0 {
			ev |= unix.POLLIN
		}
		if e.interest&Writable != 0 {
			ev |= unix.POLLOUT
		}
		fds[i] = unix.PollFd{Fd: int32(e.src.Fd()), Events: ev}
	}

	n, err := unix.Poll(fds, pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("evloop: poll: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	ran := 0
	for i, tok := range toks {
		re := fds[i].Revents
		if re == 0 {
			continue
		}
		// An earlier callback may have removed this source.
		e, ok := l.entries[tok]
		if !ok {
			continue
		}
		r := Readiness{
			Readable: re&unix.POLLIN != 0,
			Writable: re&unix.POLLOUT != 0,
			Hangup:   re&unix.POLLHUP != 0,
			Error:    re&(unix.POLLERR|unix.POLLNVAL) != 0,
		}
		ran++
		if e.cb(r) == Remove {
			if err := l.Remove(tok); err != nil {
				slog.Warn("closing event source failed", "component", "evloop", "token", tok, "err", err)
			}
		}
	}
	return ran, nil
}

// Run dispatches until no sources remain or deadline passes. A zero
// deadline means no deadline.
func (l *Loop) Run(deadline time.Time) error {
	for l.Len() > 0 {
		wait := time.Duration(-1)
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return fmt.Errorf("evloop: %d sources still pending: %w", l.Len(), ErrDeadline)
			}
		}
		if _, err := l.Dispatch(wait); err != nil {
			return err
		}
	}
	return nil
}

// Close removes and closes every source. The loop cannot be reused.
func (l *Loop) Close() error {
	var errs []error
	for _, tok := range append([]Token(nil), l.order...) {
		if err := l.Remove(tok); err != nil {
			errs = append(errs, err)
		}
	}
	l.closed = true
	return errors.Join(errs...)
}

func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
